package dto

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

var validate = validator.New()

// Validate runs struct tag validation and converts failures into a
// field-keyed validation error.
func Validate(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return apperrors.NewValidationError("validation failed", details)
}
