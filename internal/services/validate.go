package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pandoapps/videoSoryBoard/internal/platform/apierr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct tags and reports the first violation as a 400.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apierr.BadRequest("validation_failed", err.Error())
	}
	fe := verrs[0]
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("The %s field is required.", field)
	case "max":
		msg = fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("The selected %s is invalid.", field)
	default:
		msg = fmt.Sprintf("The %s field is invalid.", field)
	}
	return apierr.BadRequest("validation_failed", msg)
}
