// Package validation provides struct validation using go-playground/validator/v10 with
// provenance-specific custom validators.
package validation

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

// Validator wraps go-playground/validator with the custom tags used across the module.
type Validator struct {
	validator *validator.Validate
}

var shared = sync.OnceValue(NewValidator)

// Default returns the process-wide validator. validator.Validate caches struct metadata,
// so a single instance is reused.
func Default() *Validator {
	return shared()
}

// NewValidator creates a new validation instance with the custom validators registered.
func NewValidator() *Validator {
	validate := validator.New()

	_ = validate.RegisterValidation("semver", validateSemVerCustom)
	_ = validate.RegisterValidation("go_ident", validateGoIdentCustom)

	return &Validator{
		validator: validate,
	}
}

// Validate validates a struct and converts failures into a joined ValidationError list.
func (v *Validator) Validate(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	converted := ConvertValidationErrors(err)
	if len(converted) == 0 {
		return err
	}

	errs := make([]error, 0, len(converted))
	for i := range converted {
		errs = append(errs, &converted[i])
	}
	return errors.Join(errs...)
}

// ValidateVar validates a single variable using the specified tag.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validator.Var(field, tag)
}

// IsSemVer reports whether version is a complete MAJOR.MINOR.PATCH semantic version,
// with optional pre-release and build metadata. A leading "v" is accepted.
func IsSemVer(version string) bool {
	if version == "" {
		return false
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	// x/mod/semver accepts "v1" and "v1.2" shorthands; Canonical expands them.
	return strings.TrimSuffix(v, semver.Build(v)) == semver.Canonical(v)
}

func validateSemVerCustom(fl validator.FieldLevel) bool {
	version := fl.Field().String()
	if version == "" {
		return true // Empty values handled by 'required' tag
	}
	return IsSemVer(version)
}

// Go identifier validator for generated package names. Keywords and the blank
// identifier are rejected; neither can name a package.
func validateGoIdentCustom(fl validator.FieldLevel) bool {
	ident := fl.Field().String()
	if ident == "" {
		return true
	}
	return ident != "_" && token.IsIdentifier(ident)
}

// ValidationError wraps go-playground validator errors with additional context.
type ValidationError struct {
	Field   string      `json:"field"`
	Tag     string      `json:"tag"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", ve.Field, ve.Message)
}

// ConvertValidationErrors converts go-playground validation errors to our custom format.
func ConvertValidationErrors(err error) []ValidationError {
	var out []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, validationErr := range validationErrors {
			out = append(out, ValidationError{
				Field:   validationErr.Namespace(),
				Tag:     validationErr.Tag(),
				Value:   validationErr.Value(),
				Message: getCustomErrorMessage(validationErr),
			})
		}
	}

	return out
}

// getCustomErrorMessage provides human-readable error messages for validation failures.
func getCustomErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "semver":
		return "must be a semantic version (e.g., 1.2.3 or 1.2.3-rc.1)"
	case "go_ident":
		return "must be a valid Go identifier"
	case "hexadecimal":
		return "must be a hexadecimal string"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}
