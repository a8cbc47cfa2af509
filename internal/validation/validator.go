package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"ecocash/internal/service"
)

// New returns a validator with the gateway's custom tags registered.
//
//	msisdn: the value normalizes to a canonical EcoCash number
//
// Field errors are reported under their JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("msisdn", func(fl validatorv10.FieldLevel) bool {
		return service.IsValidMSISDN(fl.Field().String())
	})

	return v
}
