package enums

import "fmt"

// MetricType names a metered resource.
type MetricType string

const (
	MetricUsers     MetricType = "users"
	MetricBranches  MetricType = "branches"
	MetricPatients  MetricType = "patients"
	MetricSMS       MetricType = "sms"
	MetricStorageGB MetricType = "storage_gb"
	MetricAPICalls  MetricType = "api_calls"
)

var validMetricTypes = []MetricType{
	MetricUsers,
	MetricBranches,
	MetricPatients,
	MetricSMS,
	MetricStorageGB,
	MetricAPICalls,
}

// ProvisionedMetrics are seeded for every new tenant.
var ProvisionedMetrics = []MetricType{
	MetricUsers,
	MetricPatients,
	MetricSMS,
	MetricStorageGB,
	MetricAPICalls,
}

// String implements fmt.Stringer.
func (m MetricType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MetricType.
func (m MetricType) IsValid() bool {
	for _, candidate := range validMetricTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMetricType converts raw input into a MetricType.
func ParseMetricType(value string) (MetricType, error) {
	for _, candidate := range validMetricTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid metric type %q", value)
}
