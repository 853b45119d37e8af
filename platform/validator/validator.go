// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	farmIDPattern      = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)
	catalogCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,31}$`)
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator with the shared identifier tags registered:
//
//	farmid       upper-case alphanumeric farm code, 2 to 8 chars
//	catalogcode  upper-case catalog key (strain, substrate, contamination code)
//
// Domain modules add their own tags through RegisterValidation.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("farmid", func(fl validator.FieldLevel) bool {
		return farmIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("catalogcode", func(fl validator.FieldLevel) bool {
		return catalogCodePattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// FieldErrors flattens validation errors into field -> failed tag pairs for
// error response details. Non-validation errors yield nil.
func FieldErrors(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
