package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"GuildFM/core/auth"
	"GuildFM/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

var errNoClaims = errors.New("claims not found in context")

// AuthMiddleware checks the bearer token. The websocket endpoint may pass it as ?token=
// because browsers cannot set headers on the upgrade request.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.issuer == nil {
			writeError(w, http.StatusServiceUnavailable, "api auth not configured")
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		claims, err := h.issuer.ParseToken(token)
		if err != nil {
			logger.Debug("rejected api token", logger.ErrorField(err))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ClaimsFromContext 读取 AuthMiddleware 写入的令牌载荷
func ClaimsFromContext(ctx context.Context) (*auth.Claims, error) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}
