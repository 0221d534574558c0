package handler

import (
	"context"
	"go-storefront-auth/common"
	"go-storefront-auth/model"
	"go-storefront-auth/service"
	"net/http"
	"slices"
	"strings"
)

type contextKey string

const (
	UsernameKey    contextKey = "username"
	AuthoritiesKey contextKey = "authorities"
)

// TokenVerifier decodes bearer access tokens.
type TokenVerifier interface {
	VerifyAndDecode(token string) (*model.AppClaims, error)
}

func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				common.NewAppError(http.StatusUnauthorized, common.CodeUnauthorized, "Authorization header is required", nil).Send(w)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				common.NewAppError(http.StatusUnauthorized, common.CodeUnauthorized, "Invalid authorization header format", nil).Send(w)
				return
			}

			claims, err := verifier.VerifyAndDecode(headerParts[1])
			if err != nil {
				toAppError(err).Send(w)
				return
			}

			ctx := context.WithValue(r.Context(), UsernameKey, claims.Subject)
			ctx = context.WithValue(ctx, AuthoritiesKey, service.Authorities(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorities, _ := r.Context().Value(AuthoritiesKey).([]string)
		if !slices.Contains(authorities, model.RoleAdmin) {
			common.NewAppError(http.StatusForbidden, common.CodeForbidden, "Access denied. Admin privileges required.", nil).Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// usernameFrom returns the subject placed in the context by AuthMiddleware.
func usernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok && username != ""
}
