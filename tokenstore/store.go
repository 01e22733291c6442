// Package tokenstore holds the access and refresh tokens of a FlouzeTrack
// session. Implementations are safe for concurrent use.
package tokenstore

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store is a durable holder for the two session credentials.
// A missing token reads as "" with a nil error.
type Store interface {
	AccessToken() (string, error)
	SetAccessToken(token string) error
	RemoveAccessToken() error

	RefreshToken() (string, error)
	SetRefreshToken(token string) error
	RemoveRefreshToken() error

	// SetTokens replaces both tokens in one write.
	SetTokens(access, refresh string) error
	// RemoveAll clears both tokens in one write. Used on logout and when a
	// refresh fails.
	RemoveAll() error
}

// Tokens is the persisted record for one profile.
type Tokens struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Profile      string    `json:"profile"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t *Tokens) empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// ErrNoExpiry is returned by Expiry when the token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry claim")

// Expiry reports the exp claim of a JWT access token without verifying its
// signature. Only the server can verify the token; this is for display.
func Expiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*BoltStore)(nil)
)
