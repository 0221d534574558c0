package handler

import (
	"context"
	"go-storefront-auth/common"
	"go-storefront-auth/model"
	"go-storefront-auth/service"
	"net/http"
)

// IAuthService is the authentication use case consumed by the handlers.
type IAuthService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, usernameOrEmail, password string) (*service.TokenPair, error)
	Refresh(ctx context.Context, rawRefreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, rawRefreshToken string) error
	VerifyEmail(ctx context.Context, rawToken string) (*model.User, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	InitiatePasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	ResetRateLimit(ctx context.Context, scope, key string) error
}

type AuthHandler struct {
	Service IAuthService
}

func NewAuthHandler(svc IAuthService) *AuthHandler {
	return &AuthHandler{Service: svc}
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an unverified account and sends a verification email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        user  body      model.RegisterRequest  true  "User registration info"
// @Success      201   {object}  model.User
// @Failure      400   {object}  common.AppError
// @Failure      409   {object}  common.AppError
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, err := h.Service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return toAppError(err)
	}
	common.WriteJSON(w, http.StatusCreated, user)
	return nil
}

// Login godoc
// @Summary      Log in
// @Description  Exchanges credentials for an access and refresh token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body      model.LoginRequest  true  "Username or email and password"
// @Success      200          {object}  service.TokenPair
// @Failure      401          {object}  common.AppError
// @Failure      403          {object}  common.AppError
// @Failure      429          {object}  common.AppError
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	pair, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return toAppError(err)
	}
	common.WriteJSON(w, http.StatusOK, pair)
	return nil
}

// Refresh godoc
// @Summary      Refresh tokens
// @Description  Rotates a refresh token. The presented token cannot be used again.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  body      model.RefreshTokenRequest  true  "Refresh token"
// @Success      200    {object}  service.TokenPair
// @Failure      401    {object}  common.AppError
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshTokenRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	pair, err := h.Service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return toAppError(err)
	}
	common.WriteJSON(w, http.StatusOK, pair)
	return nil
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes a refresh token. Repeating the call is harmless.
// @Tags         auth
// @Accept       json
// @Param        token  body  model.RefreshTokenRequest  true  "Refresh token"
// @Success      204
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshTokenRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.Service.Logout(r.Context(), req.RefreshToken); err != nil {
		return toAppError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// VerifyEmail godoc
// @Summary      Verify email address
// @Tags         verification
// @Produce      json
// @Param        token  query     string  true  "Verification token"
// @Success      200    {object}  model.User
// @Failure      401    {object}  common.AppError
// @Failure      409    {object}  common.AppError
// @Router       /api/verify/email [get]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) *common.AppError {
	token := r.URL.Query().Get("token")
	if token == "" {
		return common.NewAppError(http.StatusBadRequest, common.CodeValidation, "token query parameter is required", nil)
	}

	user, err := h.Service.VerifyEmail(r.Context(), token)
	if err != nil {
		return toAppError(err)
	}
	common.WriteJSON(w, http.StatusOK, user)
	return nil
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Always answers 202 for a well-formed request so accounts cannot be enumerated.
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        request  body      model.ForgotPasswordRequest  true  "Account email"
// @Success      202      {object}  messageResponse
// @Failure      429      {object}  common.AppError
// @Router       /api/password/forgot [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ForgotPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.Service.InitiatePasswordReset(r.Context(), req.Email); err != nil {
		return toAppError(err)
	}
	common.WriteJSON(w, http.StatusAccepted, messageResponse{Message: "If the email is registered, a reset link has been sent"})
	return nil
}

// ResetPassword godoc
// @Summary      Reset password
// @Description  Consumes a reset token, sets the new password and signs out every session.
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        request  body      model.ResetPasswordRequest  true  "Reset token and new password"
// @Success      200      {object}  messageResponse
// @Failure      401      {object}  common.AppError
// @Router       /api/password/reset [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ResetPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.Service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		return toAppError(err)
	}
	common.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset"})
	return nil
}

// ChangePassword godoc
// @Summary      Change password
// @Tags         password
// @Accept       json
// @Param        request  body  model.ChangePasswordRequest  true  "Old and new password"
// @Success      204
// @Failure      401  {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/password/change [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	username, ok := usernameFrom(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, common.CodeUnauthorized, "Authentication required", nil)
	}

	var req model.ChangePasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.Service.ChangePassword(r.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		return toAppError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
