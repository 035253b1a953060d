package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"flowauth/internal/middleware"
	"flowauth/internal/model"
	"flowauth/internal/session"
	"flowauth/pkg/apierror"
)

type googleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (model.GoogleProfile, error)
}

type authService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.TokenPair, model.SanitizedUser, error)
	Login(ctx context.Context, email string, password string) (model.TokenPair, model.SanitizedUser, error)
	LoginWithGoogle(ctx context.Context, profile model.GoogleProfile) (model.TokenPair, model.SanitizedUser, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, model.SanitizedUser, error)
}

type AuthHandler struct {
	service     authService
	google      googleProvider // nil when the provider is not configured
	cookies     session.CookieWriter
	frontendURL string
}

func NewAuthHandler(service authService, google googleProvider, cookies session.CookieWriter, frontendURL string) *AuthHandler {
	return &AuthHandler{
		service:     service,
		google:      google,
		cookies:     cookies,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	pair, user, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetAuth(w, pair, user.ID)
	writeSuccess(w, http.StatusOK, model.AuthResponse{User: user})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	pair, user, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetAuth(w, pair, user.ID)
	writeSuccess(w, http.StatusCreated, model.AuthResponse{User: user})
}

// Refresh rotates the pair. A rejected session gets its cookies actively
// cleared so the client does not loop on it; a store failure keeps them, the
// session may still be good once the store recovers.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)
	if token == "" {
		h.cookies.ClearAuth(w)
		writeError(w, apierror.Unauthorized())
		return
	}

	pair, user, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusUnauthorized {
			h.cookies.ClearAuth(w)
			writeError(w, apierror.Unauthorized())
			return
		}
		writeError(w, err)
		return
	}

	h.cookies.SetAuth(w, pair, user.ID)
	writeSuccess(w, http.StatusOK, model.AuthResponse{User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAuth(w)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized())
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

// GoogleLogin starts the consent flow. The state nonce is double-submitted
// through a short-lived cookie and checked at the callback.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, apierror.New("NOT_FOUND", "google sign-in is not configured", "", http.StatusNotFound))
		return
	}

	state := uuid.NewString()
	h.cookies.SetOAuthState(w, state)
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback is a browser navigation, so failures redirect back to the
// frontend sign-in page instead of returning JSON.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, apierror.New("NOT_FOUND", "google sign-in is not configured", "", http.StatusNotFound))
		return
	}

	h.cookies.ClearOAuthState(w)

	if r.URL.Query().Get("error") != "" {
		h.redirectSignInError(w, r)
		return
	}

	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(session.OAuthStateCookie)
	if err != nil || state == "" || state != stateCookie.Value {
		h.redirectSignInError(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectSignInError(w, r)
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.redirectSignInError(w, r)
		return
	}

	pair, user, err := h.service.LoginWithGoogle(r.Context(), profile)
	if err != nil {
		h.redirectSignInError(w, r)
		return
	}

	h.cookies.SetAuth(w, pair, user.ID)

	// Fragment fallback for cookie-hostile contexts: the frontend reads the
	// tokens from the URL hash when cookies did not stick.
	dashboard, err := url.Parse(h.frontendURL + "/dashboard")
	if err != nil {
		h.redirectSignInError(w, r)
		return
	}
	fragment := url.Values{}
	fragment.Set("access_token", pair.AccessToken)
	fragment.Set("refresh_token", pair.RefreshToken)
	fragment.Set("user_id", user.ID)
	dashboard.Fragment = fragment.Encode()

	http.Redirect(w, r, dashboard.String(), http.StatusFound)
}

func (h *AuthHandler) redirectSignInError(w http.ResponseWriter, r *http.Request) {
	signIn, err := url.Parse(h.frontendURL + "/sign-in")
	if err != nil {
		writeError(w, apierror.Unauthorized())
		return
	}
	query := signIn.Query()
	query.Set("error", "google_auth_failed")
	signIn.RawQuery = query.Encode()

	http.Redirect(w, r, signIn.String(), http.StatusFound)
}

func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(session.RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return middleware.BearerToken(r)
}
