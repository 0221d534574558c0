package common

import (
	"encoding/json"
	"go-storefront-auth/logger"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Machine-readable error codes returned to clients.
const (
	CodeTokenExpired       = "TKN-3000"
	CodeTokenInvalid       = "TKN-3001"
	CodeTokenUnsupported   = "TKN-3003"
	CodeAlreadyVerified    = "TKN-3004"
	CodeUserAlreadyExists  = "USR-1001"
	CodeUserNotVerified    = "USR-1002"
	CodeInvalidCredentials = "USR-1003"
	CodeRateLimitExceeded  = "RTL-4290"
	CodeValidation         = "VAL-4000"
	CodeUnauthorized       = "AUT-4010"
	CodeForbidden          = "AUT-4030"
	CodeInternal           = "SYS-5000"
)

type AppError struct {
	Code      int            `json:"code"`
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Err       error          `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code int, errorCode, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		ErrorCode: errorCode,
		Message:   message,
		Err:       err,
	}
}

// WithDetail attaches a key to the details object of the response.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) Send(w http.ResponseWriter) {
	if e.Err != nil {
		logger.Log.WithFields(logrus.Fields{
			"status_code":    e.Code,
			"error_code":     e.ErrorCode,
			"internal_error": e.Err.Error(),
		}).Error(e.Message)
	}

	WriteJSON(w, e.Code, e)
}

// WriteJSON writes payload as the JSON body of a response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response")
	}
}
