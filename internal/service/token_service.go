package service

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"flowauth/internal/model"
	"flowauth/pkg/apierror"
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenService mints and verifies the access/refresh pair. The two kinds are
// signed with distinct secrets, so holding one token never allows forging the
// other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenService(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("jwt signing secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh signing secrets must differ")
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

func (s *TokenService) Issue(user model.User) (model.TokenPair, error) {
	now := time.Now().UTC()

	accessToken, err := s.sign(user, TokenKindAccess, now, s.accessTTL, s.accessSecret)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.sign(user, TokenKindRefresh, now, s.refreshTTL, s.refreshSecret)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) sign(user model.User, kind TokenKind, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"typ":   string(kind),
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// Validate verifies signature, expiry and kind. Misbehaving clients send the
// literal strings "undefined" and "null"; both are rejected up front.
func (s *TokenService) Validate(tokenString string, kind TokenKind) (*model.TokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" || tokenString == "undefined" || tokenString == "null" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token", "", http.StatusUnauthorized)
	}

	secret := s.accessSecret
	if kind == TokenKindRefresh {
		secret = s.refreshSecret
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.New("UNAUTHORIZED", "invalid or expired token", "", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New("UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized)
	}

	claims := &model.TokenClaims{}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.Kind, _ = claimsMap["typ"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.Kind != string(kind) {
		return nil, apierror.New("UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized)
	}
	if claims.UserID == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	return claims, nil
}
