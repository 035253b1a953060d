package model

import "time"

// User is the stored identity record. Nullable columns use pointers so a
// missing value survives the round trip to Postgres unchanged.
type User struct {
	ID                 string
	Email              string
	Name               string
	ProfileImage       *string
	PasswordHash       *string
	GoogleID           *string
	GoogleEmail        *string
	GoogleRefreshToken *string
	Tier               string
	Credits            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPassword reports whether local credential login is possible for this
// user. OAuth-only accounts have no hash.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// SanitizedUser is the only identity view that leaves the service. It never
// carries the password hash or the provider refresh token.
type SanitizedUser struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	ProfileImage *string `json:"profileImage"`
	Tier         string  `json:"tier"`
	Credits      string  `json:"credits"`
}

func (u User) Sanitized() SanitizedUser {
	return SanitizedUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		ProfileImage: u.ProfileImage,
		Tier:         u.Tier,
		Credits:      u.Credits,
	}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenClaims is the verified claim set shared by both token kinds.
type TokenClaims struct {
	UserID  string
	Email   string
	Kind    string
	TokenID string
}

// GoogleProfile is what the OAuth handshake yields about the external account.
type GoogleProfile struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Picture      *string
	RefreshToken *string
}

// GoogleLink carries the provider fields written onto an existing user when an
// OAuth sign-in resolves to it.
type GoogleLink struct {
	UserID       string
	GoogleID     string
	GoogleEmail  string
	RefreshToken *string
	ProfileImage *string
}
