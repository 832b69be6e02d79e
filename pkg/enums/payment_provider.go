package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider identifies an external payment network.
type PaymentProvider string

const (
	PaymentProviderPaystack    PaymentProvider = "PAYSTACK"
	PaymentProviderFlutterwave PaymentProvider = "FLUTTERWAVE"
	PaymentProviderStripe      PaymentProvider = "STRIPE"
	PaymentProviderMTNMoMo     PaymentProvider = "MTN_MOMO"
	PaymentProviderSquare      PaymentProvider = "SQUARE"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderPaystack,
	PaymentProviderFlutterwave,
	PaymentProviderStripe,
	PaymentProviderMTNMoMo,
	PaymentProviderSquare,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider accepts the canonical value or its lowercase URL form.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
