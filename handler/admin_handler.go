package handler

import (
	"go-storefront-auth/common"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"net/http"

	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	Service IAuthService
}

func NewAdminHandler(svc IAuthService) *AdminHandler {
	return &AdminHandler{Service: svc}
}

// ResetRateLimit godoc
// @Summary      Unblock a throttled key
// @Description  Clears the login or password reset bucket of a key (admin only).
// @Tags         admin
// @Accept       json
// @Param        request  body  model.ResetRateLimitRequest  true  "Scope and key"
// @Success      204
// @Failure      400  {object}  common.AppError
// @Failure      403  {object}  common.AppError
// @Security     BearerAuth
// @Router       /api/admin/rate-limits/reset [post]
func (h *AdminHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ResetRateLimitRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	admin, _ := usernameFrom(r.Context())
	logger.Log.WithFields(logrus.Fields{
		"admin": admin,
		"scope": req.Scope,
	}).Info("Admin requested rate limit reset")

	if err := h.Service.ResetRateLimit(r.Context(), req.Scope, req.Key); err != nil {
		return toAppError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
