package config

import (
	"fmt"
	"time"
)

// validator collects all config violations rather than failing on the first.
type validator struct {
	name   string
	errors []error
}

func newValidator(name string) *validator {
	return &validator{name: name}
}

func (v *validator) required(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Errorf("%s.%s: required field is empty", v.name, field))
	}
}

func (v *validator) positive(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Errorf("%s.%s: value %d must be positive", v.name, field, value))
	}
}

func (v *validator) rangeInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Errorf("%s.%s: value %d is outside range [%d, %d]", v.name, field, value, min, max))
	}
}

func (v *validator) minDuration(field string, value, min time.Duration) {
	if value < min {
		v.errors = append(v.errors, fmt.Errorf("%s.%s: duration %v is below minimum %v", v.name, field, value, min))
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.errors = append(v.errors, fmt.Errorf("%s.%s: value %q must be one of %v", v.name, field, value, allowed))
}

func (v *validator) result() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return v.errors[0]
	default:
		return fmt.Errorf("%s validation failed with %d errors: %v", v.name, len(v.errors), v.errors[0])
	}
}
