package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/slug"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names ("title", "tags[2]") instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.IsValid(fl.Field().String())
	})
	return v
}

// validationError turns the first validator failure into an errs.ApiErr.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.NewValidationError("payload", err.Error())
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return errs.NewMissingRequiredFieldError(field)
	case "max":
		if fe.Kind() == reflect.String {
			return errs.NewValidationError(field, fmt.Sprintf("must be at most %s characters", fe.Param()))
		}
		return errs.NewValidationError(field, fmt.Sprintf("must be at most %s", fe.Param()))
	case "min":
		return errs.NewValidationError(field, fmt.Sprintf("must be at least %s", fe.Param()))
	case "slug":
		return errs.NewValidationError(field, "must be lowercase letters, digits and single hyphens")
	case "datetime":
		return errs.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	default:
		return errs.NewValidationError(field, fmt.Sprintf("failed %q check", fe.Tag()))
	}
}
