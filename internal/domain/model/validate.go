package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance, initialized with the custom
// rules used by the payload tags.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("emotion", func(fl validator.FieldLevel) bool {
		return Emotion(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("clock", validateClock)
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateClock accepts HH:MM and HH:MM:SS wall-clock times.
func validateClock(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	for _, layout := range []string{"15:04", "15:04:05"} {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// Validate checks a payload struct against its validate tags. Failures
// wrap ErrInvalid and name every offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "emotion":
		return field + " must be one of positive, neutral, negative"
	case "datetime":
		return field + " must be a date in " + fe.Param() + " format"
	case "clock":
		return field + " must be a time as HH:MM or HH:MM:SS"
	case "hexcolor":
		return field + " must be a hex color"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	}
	return field + " is invalid (" + fe.Tag() + ")"
}
