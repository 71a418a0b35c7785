package types

import "strings"

// ShippingInfo is the delivery contact collected in the first checkout step.
// Fields are free text; the shipping gate requires each to be non-blank.
type ShippingInfo struct {
	FullName   string `json:"full_name" validate:"notblank"`
	Email      string `json:"email" validate:"notblank"`
	Address    string `json:"address" validate:"notblank"`
	City       string `json:"city" validate:"notblank"`
	PostalCode string `json:"postal_code" validate:"notblank"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s ShippingInfo) Trimmed() ShippingInfo {
	return ShippingInfo{
		FullName:   strings.TrimSpace(s.FullName),
		Email:      strings.TrimSpace(s.Email),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
	}
}

// Identity is what the identity provider knows about the signed-in shopper.
type Identity struct {
	Subject string `json:"sub,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// IsZero reports whether no identity details are available.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.Name) == "" && strings.TrimSpace(i.Email) == ""
}
