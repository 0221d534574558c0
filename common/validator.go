package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateAndDecode decodes the JSON body into payload and validates it.
// Validation failures list the offending fields in Details.
func ValidateAndDecode(r *http.Request, payload interface{}) *AppError {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return NewAppError(http.StatusBadRequest, CodeValidation, "Invalid request body", nil)
	}
	return Validate(payload)
}

// Validate checks the validate tags of payload.
func Validate(payload interface{}) *AppError {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewAppError(http.StatusBadRequest, CodeValidation, "Invalid request body", nil)
	}
	appErr := NewAppError(http.StatusBadRequest, CodeValidation, "Validation failed", nil)
	for _, fe := range validationErrors {
		appErr.WithDetail(fe.Field(), fe.Tag())
	}
	return appErr
}
