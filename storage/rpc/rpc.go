// Package rpc calls the stored procedures of the hosted database.
package rpc

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

var (
	// ErrNoResult is returned when a procedure expected to return rows returned none.
	ErrNoResult = errors.New("remote procedure returned no result")

	nameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

type (
	// Params are the named arguments of a procedure call.
	Params map[string]interface{}

	// Caller invokes a named remote procedure and decodes its result into dest.
	// dest may be nil when the result is not needed.
	Caller interface {
		Call(ctx context.Context, procedure string, params Params, dest interface{}) error
	}

	// RemoteError is a failure reported by the remote database.
	RemoteError struct {
		Status  int    `json:"-"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
	}
)

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// ValidateCall checks the procedure and parameter names before they leave the process.
func ValidateCall(procedure string, params Params) error {
	if !nameRegex.MatchString(procedure) {
		return errors.Errorf("invalid procedure name %q", procedure)
	}
	for name := range params {
		if !nameRegex.MatchString(name) {
			return errors.Errorf("invalid parameter name %q for %s", name, procedure)
		}
	}
	return nil
}

type ctxKey int

const accessTokenKey ctxKey = iota

// WithAccessToken returns a copy of ctx carrying the caller's access token.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}

func AccessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey).(string)
	return token
}
