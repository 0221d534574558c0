package handler

import (
	"errors"
	"go-storefront-auth/common"
	"go-storefront-auth/service"
	"net/http"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// toAppError maps service errors onto the HTTP error envelope. Unknown
// errors become a 500 whose cause is logged but never returned.
func toAppError(err error) *common.AppError {
	var notVerified *service.UserNotVerifiedError
	switch {
	case errors.As(err, &notVerified):
		return common.NewAppError(http.StatusForbidden, common.CodeUserNotVerified, "Email address is not verified", nil).
			WithDetail("email_resent", notVerified.EmailResent)
	case errors.Is(err, service.ErrTokenExpired):
		return common.NewAppError(http.StatusUnauthorized, common.CodeTokenExpired, "Token has expired", nil)
	case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrTokenNotFound):
		// Unknown tokens look the same as invalid ones.
		return common.NewAppError(http.StatusUnauthorized, common.CodeTokenInvalid, "Token is invalid", nil)
	case errors.Is(err, service.ErrTokenUnsupported):
		return common.NewAppError(http.StatusUnauthorized, common.CodeTokenUnsupported, "Token algorithm is not supported", nil)
	case errors.Is(err, service.ErrAlreadyVerified):
		return common.NewAppError(http.StatusConflict, common.CodeAlreadyVerified, "Email is already verified", nil)
	case errors.Is(err, service.ErrRateLimitExceeded):
		return common.NewAppError(http.StatusTooManyRequests, common.CodeRateLimitExceeded, "Too many attempts, try again later", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		return common.NewAppError(http.StatusUnauthorized, common.CodeInvalidCredentials, "Invalid username or password", nil)
	case errors.Is(err, service.ErrUserAlreadyExists):
		return common.NewAppError(http.StatusConflict, common.CodeUserAlreadyExists, "Username or email is already taken", nil)
	case errors.Is(err, service.ErrUnknownLimitScope):
		return common.NewAppError(http.StatusBadRequest, common.CodeValidation, "Unknown rate limit scope", nil)
	default:
		return common.NewAppError(http.StatusInternalServerError, common.CodeInternal, "Internal server error", err)
	}
}
