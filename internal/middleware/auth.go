package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"flowauth/internal/model"
	"flowauth/internal/session"
)

type userAuthenticator interface {
	UserFromAccessToken(ctx context.Context, accessToken string) (model.SanitizedUser, error)
}

type contextKey string

const authUserContextKey contextKey = "auth_user"

type AuthMiddleware struct {
	auth userAuthenticator
}

func NewAuthMiddleware(auth userAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth guards protected routes. The access token is read cookie-first
// with a bearer-header fallback, validated, and the user is looked up again
// so a deleted account cannot keep using an unexpired token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := AccessTokenFromRequest(r)
		if token == "" {
			writeUnauthorized(w, "missing access token")
			return
		}

		user, err := m.auth.UserFromAccessToken(r.Context(), token)
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), authUserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserFromContext(ctx context.Context) (model.SanitizedUser, bool) {
	user, ok := ctx.Value(authUserContextKey).(model.SanitizedUser)
	return user, ok
}

// AccessTokenFromRequest prefers the httpOnly cookie; API callers without
// cookies may send Authorization: Bearer instead.
func AccessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(session.AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
}
