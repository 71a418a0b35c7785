package checkout

import (
	"testing"

	"github.com/angelmondragon/assetcart/pkg/types"
)

func TestValidateShipping(t *testing.T) {
	if failures := ValidateShipping(completeShipping()); failures != nil {
		t.Fatalf("expected no failures, got %v", failures)
	}

	failures := ValidateShipping(types.ShippingInfo{FullName: "Ada", Email: " "})
	want := []string{"email", "address", "city", "postal_code"}
	if len(failures) != len(want) {
		t.Fatalf("expected %d failures, got %v", len(want), failures)
	}
	for _, field := range want {
		if failures[field] != "must not be blank" {
			t.Fatalf("expected blank message for %s, got %q", field, failures[field])
		}
	}
}
