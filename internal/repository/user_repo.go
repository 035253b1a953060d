package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowauth/internal/model"
)

const userColumns = `id, email, name, profile_image, password_hash,
	google_id, google_email, google_refresh_token, tier, credits,
	created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "find user by id")
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
	return scanUser(row, "find user by email")
}

func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
	return scanUser(row, "find user by google id")
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, profile_image, password_hash,
		        google_id, google_email, google_refresh_token, tier, credits,
		        created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+userColumns,
		u.ID, u.Email, u.Name, u.ProfileImage, u.PasswordHash,
		u.GoogleID, u.GoogleEmail, u.GoogleRefreshToken, u.Tier, u.Credits,
		u.CreatedAt, u.UpdatedAt)
	return scanUser(row, "create user")
}

// LinkGoogle writes the provider fields onto an existing user. The avatar is
// only backfilled when the record has none; a user-set image always wins.
func (r *UserRepository) LinkGoogle(ctx context.Context, link model.GoogleLink) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET google_id = $2,
		     google_email = $3,
		     google_refresh_token = $4,
		     profile_image = COALESCE(profile_image, $5),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		link.UserID, link.GoogleID, link.GoogleEmail, link.RefreshToken, link.ProfileImage)
	return scanUser(row, "link google account")
}

func scanUser(row pgx.Row, op string) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.ProfileImage, &u.PasswordHash,
		&u.GoogleID, &u.GoogleEmail, &u.GoogleRefreshToken, &u.Tier, &u.Credits,
		&u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, mapPgError(op, err)
	}
	return u, nil
}

// mapPgError translates Postgres failure classes into the sentinel errors the
// service layer branches on. 23505 is the unique-constraint race on email or
// google_id; class 53 covers insufficient-resources conditions such as
// connection pool exhaustion, the only retryable failure.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, model.ErrDuplicateUser)
		}
		if strings.HasPrefix(pgErr.Code, "53") {
			return fmt.Errorf("%s: %w", op, model.ErrStoreBusy)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
