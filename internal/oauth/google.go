package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"flowauth/internal/model"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider wraps the consent redirect, code exchange and ID token
// verification for Google sign-in. Everything past the verified profile is
// the linker's problem.
type GoogleProvider struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func NewGoogle(ctx context.Context, clientID string, clientSecret string, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthCodeURL builds the consent-screen redirect. Offline access is requested
// so Google returns a refresh token we can store on the linked account.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the callback code for tokens, verifies the ID token and
// extracts the profile fields the linker needs.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (model.GoogleProfile, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return model.GoogleProfile{}, fmt.Errorf("google token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return model.GoogleProfile{}, errors.New("google did not return an id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return model.GoogleProfile{}, fmt.Errorf("google id_token verification: %w", err)
	}

	var claims struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return model.GoogleProfile{}, fmt.Errorf("google id_token claims: %w", err)
	}

	if idToken.Subject == "" || claims.Email == "" {
		return model.GoogleProfile{}, errors.New("google id_token missing required claims")
	}

	profile := model.GoogleProfile{
		ID:        idToken.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
	}
	if claims.Picture != "" {
		profile.Picture = &claims.Picture
	}
	if token.RefreshToken != "" {
		profile.RefreshToken = &token.RefreshToken
	}

	return profile, nil
}
