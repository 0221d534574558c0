package router

import (
	_ "go-storefront-auth/docs"
	"go-storefront-auth/handler"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(authHandler *handler.AuthHandler, adminHandler *handler.AdminHandler, healthHandler *handler.HealthHandler, verifier handler.TokenVerifier) http.Handler {
	mux := http.NewServeMux()
	requireAuth := handler.AuthMiddleware(verifier)

	mux.HandleFunc("GET /health", healthHandler.Check)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Public routes
	mux.Handle("POST /api/auth/register", handler.ErrorHandlingMiddleware(authHandler.Register))
	mux.Handle("POST /api/auth/login", handler.ErrorHandlingMiddleware(authHandler.Login))
	mux.Handle("POST /api/auth/refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))
	mux.Handle("POST /api/auth/logout", handler.ErrorHandlingMiddleware(authHandler.Logout))
	mux.Handle("GET /api/verify/email", handler.ErrorHandlingMiddleware(authHandler.VerifyEmail))
	mux.Handle("POST /api/password/forgot", handler.ErrorHandlingMiddleware(authHandler.ForgotPassword))
	mux.Handle("POST /api/password/reset", handler.ErrorHandlingMiddleware(authHandler.ResetPassword))

	// Protected routes
	mux.Handle("POST /api/password/change", requireAuth(handler.ErrorHandlingMiddleware(authHandler.ChangePassword)))

	// Admin routes
	mux.Handle("POST /api/admin/rate-limits/reset",
		requireAuth(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(adminHandler.ResetRateLimit))))

	return handler.RequestLogger(mux)
}
