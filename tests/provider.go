package testutil

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/session"
)

var ErrUnreachable = errors.New("dial tcp: connection refused")

// CountingProvider counts the lookups made through the wrapped session.Provider.
type CountingProvider struct {
	session.Provider
	refreshes int64
	lookups   int64
}

func NewCountingProvider(p session.Provider) *CountingProvider {
	return &CountingProvider{Provider: p}
}

func (p *CountingProvider) Refresh(ctx context.Context, creds session.Credentials) (session.Session, error) {
	atomic.AddInt64(&p.refreshes, 1)
	return p.Provider.Refresh(ctx, creds)
}

func (p *CountingProvider) GetUser(ctx context.Context, accessToken string) (session.User, error) {
	atomic.AddInt64(&p.lookups, 1)
	return p.Provider.GetUser(ctx, accessToken)
}

// Calls returns the number of Refresh and GetUser calls.
func (p *CountingProvider) Calls() int {
	return int(atomic.LoadInt64(&p.refreshes) + atomic.LoadInt64(&p.lookups))
}

// UnreachableProvider fails every call as if the identity provider were down.
type UnreachableProvider struct{}

func (UnreachableProvider) Refresh(context.Context, session.Credentials) (session.Session, error) {
	return session.Session{}, ErrUnreachable
}

func (UnreachableProvider) GetUser(context.Context, string) (session.User, error) {
	return session.User{}, ErrUnreachable
}
