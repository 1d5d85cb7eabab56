package apperror

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	UseJSONNames(v)
	return v
}

// UseJSONNames makes v report fields by their json name, so field errors
// carry the names clients actually send.
func UseJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// Check validates s against its binding tags and returns a field-attributed
// validation error, or nil.
func Check(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return FromBinding(err)
	}
	return nil
}

// FromBinding converts request binding and validation failures into a
// validation error. Anything that is not a validator error is reported as a
// malformed body.
func FromBinding(err error) *Error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return Validation("Unable to Process", Field("body", "The request body is malformed"))
	}
	fields := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, Field(fe.Field(), describe(fe)))
	}
	return Validation("Unable to Process", fields...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please enter a valid E-Mail address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must only contain digits", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
