package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var phPhonePattern = regexp.MustCompile(`^(\+63|0)?[0-9]{10}$`)

// IsPHPhone reports whether s is a Philippine mobile or landline number.
func IsPHPhone(s string) bool {
	return phPhonePattern.MatchString(s)
}

// NewValidator returns a validator with the custom tags the API uses.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ph_phone", func(fl validator.FieldLevel) bool {
		return IsPHPhone(fl.Field().String())
	})
	return v
}
