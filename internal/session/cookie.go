package session

import (
	"net/http"
	"time"

	"flowauth/internal/model"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	UserIDCookie       = "user_id"
	OAuthStateCookie   = "oauth_state"

	stateTTL = 10 * time.Minute
)

// CookieWriter issues and clears the session cookies. Secure and SameSite are
// a deployment axis: cross-origin frontends need SameSite=None with Secure.
type CookieWriter struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetAuth writes the token pair plus the client-readable user_id cookie the
// frontend uses for UI branching.
func (cw CookieWriter) SetAuth(w http.ResponseWriter, pair model.TokenPair, userID string) {
	cw.set(w, AccessTokenCookie, pair.AccessToken, cw.AccessTTL, true)
	cw.set(w, RefreshTokenCookie, pair.RefreshToken, cw.RefreshTTL, true)
	cw.set(w, UserIDCookie, userID, cw.RefreshTTL, false)
}

// ClearAuth expires all session cookies. Clearing cookies that were never set
// is fine; logout is idempotent.
func (cw CookieWriter) ClearAuth(w http.ResponseWriter) {
	cw.clear(w, AccessTokenCookie, true)
	cw.clear(w, RefreshTokenCookie, true)
	cw.clear(w, UserIDCookie, false)
}

func (cw CookieWriter) SetOAuthState(w http.ResponseWriter, state string) {
	cw.set(w, OAuthStateCookie, state, stateTTL, true)
}

func (cw CookieWriter) ClearOAuthState(w http.ResponseWriter) {
	cw.clear(w, OAuthStateCookie, true)
}

func (cw CookieWriter) set(w http.ResponseWriter, name string, value string, ttl time.Duration, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: httpOnly,
		Secure:   cw.Secure,
		SameSite: cw.SameSite,
	})
}

func (cw CookieWriter) clear(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   cw.Secure,
		SameSite: cw.SameSite,
	})
}
