package enums

// AdmissionStatus is the occupancy state of an inpatient admission.
type AdmissionStatus string

const (
	AdmissionStatusAdmitted    AdmissionStatus = "ADMITTED"
	AdmissionStatusDischarged  AdmissionStatus = "DISCHARGED"
	AdmissionStatusTransferred AdmissionStatus = "TRANSFERRED"
)

// String implements fmt.Stringer.
func (a AdmissionStatus) String() string {
	return string(a)
}
