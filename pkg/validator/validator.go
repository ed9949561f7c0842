package validator

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"eventreg/internal/model"
	"eventreg/internal/phone"
)

var global *validator.Validate

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"

	ErrPhoneDigits = "Phone number must be 10 digits"
	ErrYear        = "Year must be 3rd or 4th"
	ErrCategory    = "Category must be poster, event, memory or other"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("phone10", validatePhone)
	_ = v.RegisterValidation("year", validateYear)
	_ = v.RegisterValidation("category", validateCategory)
	_ = v.RegisterValidation("notblank", validateNotBlank)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func validatePhone(fl validator.FieldLevel) bool {
	return phone.Valid(fl.Field().String())
}

func validateYear(fl validator.FieldLevel) bool {
	y := fl.Field().String()
	return y == model.Year3rd || y == model.Year4th
}

func validateCategory(fl validator.FieldLevel) bool {
	return model.ValidCategory(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate returns the first failing rule as a single error.
func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

// Fields returns one message per failing field, keyed by its json name.
func Fields(ctx context.Context, structure any) map[string]string {
	err := Validator().StructCtx(ctx, structure)
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return nil
	}
	out := make(map[string]string, len(vErrors))
	for _, ve := range vErrors {
		if _, seen := out[ve.Field()]; seen {
			continue
		}
		out[ve.Field()] = message(ve)
	}
	return out
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	return errors.New(message(ve) + ": " + ve.Field())
}

func message(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required", "notblank":
		return ErrFieldRequired
	case "max":
		return ErrFieldExceedsMaxLen
	case "min":
		return ErrFieldBelowMinLen
	case "lt", "lte":
		return ErrFieldExceedsMaxVal
	case "gt", "gte":
		return ErrFieldBelowMinVal
	case "phone10":
		return ErrPhoneDigits
	case "year":
		return ErrYear
	case "category":
		return ErrCategory
	case "email":
		return ErrInvalidFormat
	default:
		return ErrUnknownValidation
	}
}
