package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"flowauth/internal/model"
	"flowauth/pkg/apierror"
)

const (
	defaultTier    = "Free"
	defaultCredits = "10"
	bcryptCost     = 12
)

// UserStore is the external identity store collaborator. Implementations must
// return model.ErrUserNotFound for misses, model.ErrDuplicateUser for unique
// violations and model.ErrStoreBusy for transient resource exhaustion.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	LinkGoogle(ctx context.Context, link model.GoogleLink) (model.User, error)
}

// AuthService orchestrates the four session flows over the store, the token
// service and the Google account linker.
type AuthService struct {
	store  UserStore
	tokens *TokenService
	linker *GoogleLinker
}

func NewAuthService(store UserStore, tokens *TokenService, linker *GoogleLinker) *AuthService {
	return &AuthService{store: store, tokens: tokens, linker: linker}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.TokenPair, model.SanitizedUser, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	if email == "" || password == "" {
		return model.TokenPair{}, model.SanitizedUser{}, apierror.BadRequest("email and password are required", "")
	}

	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return model.TokenPair{}, model.SanitizedUser{}, apierror.Conflict("email already registered", "")
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}
	hashStr := string(hash)

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: &hashStr,
		Tier:         defaultTier,
		Credits:      defaultCredits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if img := strings.TrimSpace(req.ProfileImage); img != "" {
		user.ProfileImage = &img
	}

	created, err := s.store.Create(ctx, user)
	if err != nil {
		// Two concurrent registrations can both pass the lookup; the unique
		// index on email settles the race.
		if errors.Is(err, model.ErrDuplicateUser) {
			return model.TokenPair{}, model.SanitizedUser{}, apierror.Conflict("email already registered", "")
		}
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	pair, err := s.tokens.Issue(created)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	return pair, created.Sanitized(), nil
}

// Login verifies local credentials. Unknown email, OAuth-only account and
// wrong password all produce the same Unauthorized so callers cannot probe
// which accounts exist or how they authenticate.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, model.SanitizedUser, error) {
	user, err := s.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.SanitizedUser{}, apierror.Unauthorized()
	}
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	if !user.HasPassword() {
		return model.TokenPair{}, model.SanitizedUser{}, apierror.Unauthorized()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, apierror.Unauthorized()
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	return pair, user.Sanitized(), nil
}

// LoginWithGoogle resolves an already-verified provider profile to a local
// user and starts a session for it.
func (s *AuthService) LoginWithGoogle(ctx context.Context, profile model.GoogleProfile) (model.TokenPair, model.SanitizedUser, error) {
	user, err := s.linker.LinkOrCreate(ctx, profile)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	return pair, user.Sanitized(), nil
}

// Refresh rotates the whole pair. The subject is looked up again so a token
// that outlived its account is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, model.SanitizedUser, error) {
	claims, err := s.tokens.Validate(refreshToken, TokenKindRefresh)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	user, err := s.store.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.SanitizedUser{}, apierror.Unauthorized()
	}
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return model.TokenPair{}, model.SanitizedUser{}, err
	}

	return pair, user.Sanitized(), nil
}

// UserFromAccessToken backs the request guard: validate, then re-look-up so a
// deleted user cannot ride an old but still valid token.
func (s *AuthService) UserFromAccessToken(ctx context.Context, accessToken string) (model.SanitizedUser, error) {
	claims, err := s.tokens.Validate(accessToken, TokenKindAccess)
	if err != nil {
		return model.SanitizedUser{}, err
	}

	user, err := s.store.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.SanitizedUser{}, apierror.Unauthorized()
	}
	if err != nil {
		return model.SanitizedUser{}, err
	}

	return user.Sanitized(), nil
}

