package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	v *validator.Validate

	// ISO-4217 style currency code, e.g. PHP
	reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Custom: currency code
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let omitempty handle empty
			return true
		}
		return reCurrency.MatchString(val)
	})

	// Custom: calendar date YYYY-MM-DD
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		_, err := time.Parse(DateLayout, val)
		return err == nil
	})
}

// fixed messages per tag; min/max are built from the param
var messages = map[string]string{
	"required": "This field is required",
	"email":    "Invalid email format",
	"oneof":    "Value is not allowed",
	"uuid":     "Invalid UUID format",
	"uuid4":    "Invalid UUID format",
	"numeric":  "Must be a number",
	"number":   "Must be a number",
	"dive":     "Invalid item",
	"currency": "Invalid currency code (use ISO-4217, e.g. “PHP”)",
	"isodate":  "Invalid date (use YYYY-MM-DD)",
}

func message(e validator.FieldError) string {
	if m, ok := messages[e.Tag()]; ok {
		return m
	}
	bound := map[string]string{"min": "least", "max": "most"}[e.Tag()]
	if bound == "" {
		return e.Error()
	}
	if e.Kind() == reflect.String {
		return fmt.Sprintf("Must be at %s %s characters", bound, e.Param())
	}
	return fmt.Sprintf("Must be at %s %s", bound, e.Param())
}

// Validate checks s against its `validate` tags. A nil Errors means s is
// valid; the error is only set for non-struct input.
func Validate(s any) (Errors, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, err
	}
	out := Errors{}
	for _, e := range ve {
		out.Add(e.Field(), message(e))
	}
	return out, nil
}

// ParseDate parses an optional YYYY-MM-DD value; empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
