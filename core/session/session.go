package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidCredentials is returned by providers when the credentials are rejected
	// (bad password, revoked or expired refresh token).
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a request carries no usable session.
	ErrUnauthenticated = errors.New("user not authenticated")
)

type (
	// User is the identity attached to a Session.
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	// Credentials is the token material stored in the session cookie.
	Credentials struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}

	// Session is a live authentication session issued by a Provider.
	Session struct {
		Credentials
		User      User      `json:"user"`
		ExpiresAt time.Time `json:"expires_at"` // UTC
	}

	// Provider fetches or refreshes sessions against the identity provider.
	Provider interface {
		// Refresh returns the session matching creds, re-issuing the tokens when needed.
		// It returns ErrInvalidCredentials when the provider rejects creds;
		// any other error means the provider could not be reached.
		Refresh(ctx context.Context, creds Credentials) (Session, error)
		GetUser(ctx context.Context, accessToken string) (User, error)
	}

	// Authenticator opens and closes sessions.
	Authenticator interface {
		SignIn(ctx context.Context, email, password string) (Session, error)
		SignOut(ctx context.Context, accessToken string) error
		SignUp(ctx context.Context, email, password string) (User, error)
	}
)

func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Valid reports whether the session carries tokens that have not expired at now.
func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" || s.User.ID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}
