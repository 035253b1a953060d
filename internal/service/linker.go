package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"flowauth/internal/model"
	"flowauth/pkg/apierror"
)

// GoogleLinker resolves a verified Google profile to a local user record:
// find by provider id, fall back to email (linking a pre-existing local
// account without touching its password hash), create if absent.
//
// The shared connection pool is the one limited resource here, so every store
// call gets exactly one retry after a fixed backoff when the store reports
// exhaustion. The retry is deliberately not exponential and not unbounded.
type GoogleLinker struct {
	store   UserStore
	backoff time.Duration
	sleep   func(time.Duration)
}

func NewGoogleLinker(store UserStore, backoff time.Duration) *GoogleLinker {
	return &GoogleLinker{store: store, backoff: backoff, sleep: time.Sleep}
}

func (l *GoogleLinker) LinkOrCreate(ctx context.Context, profile model.GoogleProfile) (model.User, error) {
	if profile.ID == "" || profile.Email == "" {
		return model.User{}, apierror.BadRequest("google profile is missing id or email", "")
	}

	user, err := l.withRetry(func() (model.User, error) {
		return l.store.FindByGoogleID(ctx, profile.ID)
	})
	if err == nil {
		// Known account: refresh the stored provider token and backfill the
		// avatar if the record has none.
		return l.link(ctx, user.ID, profile)
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, err
	}

	user, err = l.withRetry(func() (model.User, error) {
		return l.store.FindByEmail(ctx, profile.Email)
	})
	if err == nil {
		return l.link(ctx, user.ID, profile)
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, err
	}

	created, err := l.withRetry(func() (model.User, error) {
		return l.store.Create(ctx, newGoogleUser(profile))
	})
	if errors.Is(err, model.ErrDuplicateUser) {
		// A concurrent callback created the row first; treat the constraint
		// violation as "found" and resolve against the winner.
		return l.resolveRace(ctx, profile)
	}
	return created, err
}

func (l *GoogleLinker) link(ctx context.Context, userID string, profile model.GoogleProfile) (model.User, error) {
	return l.withRetry(func() (model.User, error) {
		return l.store.LinkGoogle(ctx, model.GoogleLink{
			UserID:       userID,
			GoogleID:     profile.ID,
			GoogleEmail:  profile.Email,
			RefreshToken: profile.RefreshToken,
			ProfileImage: profile.Picture,
		})
	})
}

func (l *GoogleLinker) resolveRace(ctx context.Context, profile model.GoogleProfile) (model.User, error) {
	user, err := l.withRetry(func() (model.User, error) {
		return l.store.FindByGoogleID(ctx, profile.ID)
	})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, err
	}

	// The duplicate was on email: a local account registered concurrently.
	user, err = l.withRetry(func() (model.User, error) {
		return l.store.FindByEmail(ctx, profile.Email)
	})
	if err != nil {
		return model.User{}, err
	}
	return l.link(ctx, user.ID, profile)
}

// withRetry runs fn and, only for a transient pool-exhaustion failure, waits
// the fixed backoff and retries exactly once. No lock is held while sleeping.
func (l *GoogleLinker) withRetry(fn func() (model.User, error)) (model.User, error) {
	user, err := fn()
	if errors.Is(err, model.ErrStoreBusy) {
		l.sleep(l.backoff)
		user, err = fn()
	}
	return user, err
}

func newGoogleUser(profile model.GoogleProfile) model.User {
	now := time.Now().UTC()
	googleID := profile.ID
	googleEmail := profile.Email

	return model.User{
		ID:                 uuid.NewString(),
		Email:              strings.ToLower(profile.Email),
		Name:               strings.TrimSpace(profile.FirstName + " " + profile.LastName),
		ProfileImage:       profile.Picture,
		GoogleID:           &googleID,
		GoogleEmail:        &googleEmail,
		GoogleRefreshToken: profile.RefreshToken,
		Tier:               defaultTier,
		Credits:            defaultCredits,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
