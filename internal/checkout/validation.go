package checkout

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/angelmondragon/assetcart/pkg/types"
)

var shippingValidator = newShippingValidator()

func newShippingValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ValidateShipping returns one message per failing field, keyed by json name.
// An empty result means every field is usable.
func ValidateShipping(info types.ShippingInfo) map[string]string {
	err := shippingValidator.Struct(info)
	if err == nil {
		return nil
	}
	failures := map[string]string{}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		failures["shipping"] = err.Error()
		return failures
	}
	for _, fieldErr := range errs {
		failures[fieldErr.Field()] = failureMessage(fieldErr)
	}
	return failures
}

func failureMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "must not be blank"
	}
	return "is invalid"
}
