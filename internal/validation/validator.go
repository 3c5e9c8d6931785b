// Package validation validates graph inputs with struct tags before they reach
// the network or the service.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "brain2-graph/internal/errors"
)

// Validator wraps a configured go-playground validator.
type Validator struct {
	validate *validator.Validate
}

var (
	instance *Validator
	once     sync.Once
)

// Default returns the shared validator instance.
func Default() *Validator {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates a validator with the custom rules registered.
func New() *Validator {
	v := &Validator{validate: validator.New()}

	// Use JSON tag names in error messages
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation("notblank", notBlank)
	return v
}

// Validate checks s against its struct tags and returns a VALIDATION error
// listing every failed field.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation("INVALID_INPUT", "Invalid input").WithCause(err).Build()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s %s", e.Field(), message(e.Tag(), e.Param())))
	}

	return apperrors.Validation("INVALID_INPUT", "Invalid input: "+messages[0]).
		WithDetails(strings.Join(messages, "; ")).
		WithCause(err).
		Build()
}

// Validate checks s with the shared validator.
func Validate(s interface{}) error {
	return Default().Validate(s)
}

func message(tag, param string) string {
	switch tag {
	case "required", "notblank":
		return "is required"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.String {
		return strings.TrimSpace(field.String()) != ""
	}
	return !field.IsZero()
}
