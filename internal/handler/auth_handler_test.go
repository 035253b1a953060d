package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowauth/internal/model"
	"flowauth/internal/session"
	"flowauth/pkg/apierror"
)

type stubAuthService struct {
	pair        model.TokenPair
	user        model.SanitizedUser
	err         error
	refreshSeen string
}

func (s *stubAuthService) Register(context.Context, model.RegisterRequest) (model.TokenPair, model.SanitizedUser, error) {
	return s.pair, s.user, s.err
}

func (s *stubAuthService) Login(context.Context, string, string) (model.TokenPair, model.SanitizedUser, error) {
	return s.pair, s.user, s.err
}

func (s *stubAuthService) LoginWithGoogle(context.Context, model.GoogleProfile) (model.TokenPair, model.SanitizedUser, error) {
	return s.pair, s.user, s.err
}

func (s *stubAuthService) Refresh(_ context.Context, refreshToken string) (model.TokenPair, model.SanitizedUser, error) {
	s.refreshSeen = refreshToken
	return s.pair, s.user, s.err
}

type stubGoogle struct {
	profile model.GoogleProfile
	err     error
}

func (s *stubGoogle) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (s *stubGoogle) Exchange(context.Context, string) (model.GoogleProfile, error) {
	return s.profile, s.err
}

func testCookieWriter() session.CookieWriter {
	return session.CookieWriter{
		SameSite:   http.SameSiteLaxMode,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 168 * time.Hour,
	}
}

func okStub() *stubAuthService {
	return &stubAuthService{
		pair: model.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh", TokenType: "Bearer"},
		user: model.SanitizedUser{ID: "user-1", Email: "u@test.com", Name: "Test User", Tier: "Free", Credits: "10"},
	}
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_SetsCookiesAndSanitizedBody(t *testing.T) {
	h := NewAuthHandler(okStub(), nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"u@test.com","password":"secret123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieByName(t, rec, session.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "new-access", access.Value)
	assert.True(t, access.HttpOnly)

	refresh := cookieByName(t, rec, session.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)

	userID := cookieByName(t, rec, session.UserIDCookie)
	require.NotNil(t, userID)
	assert.Equal(t, "user-1", userID.Value)
	assert.False(t, userID.HttpOnly)

	// The response body must never leak credential material.
	body := rec.Body.String()
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "hash")

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			User model.SanitizedUser `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "u@test.com", envelope.Data.User.Email)
}

func TestLogin_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(okStub(), nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: apierror.Unauthorized()}, nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"u@test.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, cookieByName(t, rec, session.AccessTokenCookie))
}

func TestRegister_Created(t *testing.T) {
	h := NewAuthHandler(okStub(), nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"u@test.com","password":"secret123","name":"Test User"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, cookieByName(t, rec, session.AccessTokenCookie))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegister_Conflict(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: apierror.Conflict("email already registered", "")}, nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"u@test.com","password":"secret123"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefresh_CookiePreferred(t *testing.T) {
	stub := okStub()
	h := NewAuthHandler(stub, nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: session.RefreshTokenCookie, Value: "cookie-refresh"})
	req.Header.Set("Authorization", "Bearer header-refresh")
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cookie-refresh", stub.refreshSeen)

	access := cookieByName(t, rec, session.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "new-access", access.Value)
}

func TestRefresh_BearerFallback(t *testing.T) {
	stub := okStub()
	h := NewAuthHandler(stub, nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer header-refresh")
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "header-refresh", stub.refreshSeen)
}

func TestRefresh_MissingTokenClearsCookies(t *testing.T) {
	h := NewAuthHandler(okStub(), nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertAuthCookiesCleared(t, rec)
}

func TestRefresh_InvalidTokenClearsCookies(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: apierror.Unauthorized()}, nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: session.RefreshTokenCookie, Value: "expired-refresh"})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertAuthCookiesCleared(t, rec)
}

func TestRefresh_StoreFailureKeepsCookies(t *testing.T) {
	// A store outage during rotation must not log the user out: the session
	// is still good, only the backend is unavailable right now.
	storeDown := fmt.Errorf("find user: %w", model.ErrStoreBusy)
	h := NewAuthHandler(&stubAuthService{err: storeDown}, nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: session.RefreshTokenCookie, Value: "good-refresh"})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	for _, name := range []string{session.AccessTokenCookie, session.RefreshTokenCookie, session.UserIDCookie} {
		assert.Nil(t, cookieByName(t, rec, name), "cookie %s must not be touched", name)
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	h := NewAuthHandler(okStub(), nil, testCookieWriter(), "http://localhost:3000")

	// No cookies on the request: clearing nothing is still a success.
	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assertAuthCookiesCleared(t, rec)
}

func TestGoogleLogin_RedirectsWithState(t *testing.T) {
	h := NewAuthHandler(okStub(), &stubGoogle{}, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	rec := httptest.NewRecorder()
	h.GoogleLogin(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	state := cookieByName(t, rec, session.OAuthStateCookie)
	require.NotNil(t, state)
	require.NotEmpty(t, state.Value)

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "state="+state.Value)
}

func TestGoogleLogin_NotConfigured(t *testing.T) {
	h := NewAuthHandler(okStub(), nil, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	rec := httptest.NewRecorder()
	h.GoogleLogin(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoogleCallback_SuccessRedirectsToDashboard(t *testing.T) {
	h := NewAuthHandler(okStub(), &stubGoogle{profile: model.GoogleProfile{ID: "google-123", Email: "u@test.com"}}, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=nonce", nil)
	req.AddCookie(&http.Cookie{Name: session.OAuthStateCookie, Value: "nonce"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", location.Path)

	// Fragment fallback for cookie-hostile browsers.
	fragment, err := url.ParseQuery(location.Fragment)
	require.NoError(t, err)
	assert.Equal(t, "new-access", fragment.Get("access_token"))
	assert.Equal(t, "user-1", fragment.Get("user_id"))

	assert.NotNil(t, cookieByName(t, rec, session.AccessTokenCookie))
}

func TestGoogleCallback_StateMismatchRedirectsToSignIn(t *testing.T) {
	h := NewAuthHandler(okStub(), &stubGoogle{}, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: session.OAuthStateCookie, Value: "nonce"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/sign-in", location.Path)
	assert.Equal(t, "google_auth_failed", location.Query().Get("error"))
}

func TestGoogleCallback_ProviderErrorRedirectsToSignIn(t *testing.T) {
	h := NewAuthHandler(okStub(), &stubGoogle{}, testCookieWriter(), "http://localhost:3000")

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=google_auth_failed")
}

func assertAuthCookiesCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	for _, name := range []string{session.AccessTokenCookie, session.RefreshTokenCookie, session.UserIDCookie} {
		cookie := cookieByName(t, rec, name)
		require.NotNil(t, cookie, "cookie %s should be present to expire it", name)
		assert.Empty(t, cookie.Value, "cookie %s should be emptied", name)
		assert.Less(t, cookie.MaxAge, 0, "cookie %s should be expired", name)
	}
}
