package enums

import "fmt"

// CheckoutStep is the position of a checkout session in the
// shipping -> payment -> review -> confirmed workflow.
type CheckoutStep string

const (
	CheckoutStepShipping  CheckoutStep = "shipping"
	CheckoutStepPayment   CheckoutStep = "payment"
	CheckoutStepReview    CheckoutStep = "review"
	CheckoutStepConfirmed CheckoutStep = "confirmed"
)

var validCheckoutSteps = []CheckoutStep{
	CheckoutStepShipping,
	CheckoutStepPayment,
	CheckoutStepReview,
	CheckoutStepConfirmed,
}

// String implements fmt.Stringer.
func (s CheckoutStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutStep.
func (s CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// Ordinal is the 1-based position shown in the step indicator.
func (s CheckoutStep) Ordinal() int {
	for i, candidate := range validCheckoutSteps {
		if candidate == s {
			return i + 1
		}
	}
	return 0
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
