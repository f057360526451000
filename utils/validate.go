package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// report fields by their JSON names so messages match the request body
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidationError aggregates every field failure of one document.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "Invalid Input Data: " + strings.Join(e.Messages, ". ")
}

// ValidateStruct runs the struct's validate tags. Messages are looked up by
// "<jsonField>.<tag>"; unknown combinations fall back to a generic sentence.
func ValidateStruct(v any, messages map[string]string) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range fieldErrs {
		key := fe.Field() + "." + fe.Tag()
		if msg, ok := messages[key]; ok {
			ve.Messages = append(ve.Messages, msg)
			continue
		}
		ve.Messages = append(ve.Messages, fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag()))
	}
	return ve
}

// MergeValidation combines several validation results into one error. A
// non-validation error is returned as is.
func MergeValidation(errs ...error) error {
	merged := &ValidationError{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		merged.Messages = append(merged.Messages, ve.Messages...)
	}
	if len(merged.Messages) == 0 {
		return nil
	}
	return merged
}
