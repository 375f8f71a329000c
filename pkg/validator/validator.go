package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{6,20}$`)
)

// FieldError is a single failed rule, keyed by the json field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Register installs the json tag name function and the domain rules
// (`clock` for HH:MM strings, `phone` for loosely formatted phone numbers).
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register clock validator: %w", err)
	}
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register phone validator: %w", err)
	}
	return nil
}

// New returns a validator with the domain rules registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

var messages = map[string]string{
	"required": "field is required",
	"email":    "invalid email format",
	"min":      "value is too small",
	"max":      "value is too large",
	"oneof":    "value is not allowed",
	"clock":    "must be a HH:MM time",
	"phone":    "invalid phone number",
	"uuid":     "must be a UUID",
}

// Translate flattens validator errors; other errors yield nil.
func Translate(err error) []FieldError {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = e.Error()
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}
