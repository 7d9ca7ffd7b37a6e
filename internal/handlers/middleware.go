package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/handlers/response"
	"gitlab.com/codepractice.net/internal/static/errs"
)

type ctxKey struct{}

type MiddlewareProvider struct {
	verifier primary.TokenVerifier
	logger   primary.Logger
}

func New(verifier primary.TokenVerifier, logger primary.Logger) *MiddlewareProvider {
	return &MiddlewareProvider{
		verifier: verifier,
		logger:   logger,
	}
}

// JWTMiddleware rejects requests without a valid bearer token and stores
// the token's user id in the request context
func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, errs.ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		userID, err := m.verifier.VerifyToken(r.Context(), tokenString)
		if err != nil {
			m.logger.Debug("Rejected bearer token", "path", r.URL.Path, "error", err)
			response.WriteError(w, response.ErrorMessage{
				Message:    "Invalid token",
				StatusCode: http.StatusUnauthorized,
				Expired:    errors.Is(err, errs.ErrTokenExpired),
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the id stored by JWTMiddleware
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok && id > 0
}
