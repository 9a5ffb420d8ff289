// Package local is an in-memory identity provider issuing HS256 access tokens and rotating refresh tokens.
// It backs development setups and tests.
package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core/session"
)

const (
	issuer = "shule"

	// DefaultReuseInterval is how long a rotated refresh token keeps returning the session it was exchanged for.
	DefaultReuseInterval = 10 * time.Second
)

var ErrAccountExists = errors.New("an account with this email already exists")

type (
	Claims struct {
		jwt.RegisteredClaims
		Email string `json:"email,omitempty"`
	}

	account struct {
		user         session.User
		passwordHash []byte
	}

	refreshEntry struct {
		userID    string
		expiresAt time.Time
		rotatedAt time.Time       // zero until the token is exchanged
		next      session.Session // what the token was exchanged for
	}

	Provider struct {
		mu         sync.RWMutex
		secret     []byte
		accessTTL  time.Duration
		refreshTTL time.Duration
		accounts   map[string]*account     // by email
		refreshes  map[string]refreshEntry // by refresh token hash
		revoked    map[string]time.Time    // access token ids, until expiry

		// ReuseInterval lets concurrent requests carrying the same expired session all get the renewed one.
		ReuseInterval time.Duration
		NowFunc       func() time.Time // mockable
	}
)

var (
	_ session.Provider      = (*Provider)(nil)
	_ session.Authenticator = (*Provider)(nil)
)

func NewProvider(secret string, accessTTL, refreshTTL time.Duration) *Provider {
	return &Provider{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		accounts:   make(map[string]*account),
		refreshes:  make(map[string]refreshEntry),
		revoked:    make(map[string]time.Time),

		ReuseInterval: DefaultReuseInterval,
		NowFunc:       time.Now,
	}
}

func (p *Provider) SignUp(_ context.Context, email, password string) (session.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return session.User{}, errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return session.User{}, errors.Wrap(err, "hashing password")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[email]; ok {
		return session.User{}, ErrAccountExists
	}
	usr := session.User{ID: uuid.NewString(), Email: email}
	p.accounts[email] = &account{user: usr, passwordHash: hash}
	return usr, nil
}

func (p *Provider) SignIn(_ context.Context, email, password string) (session.Session, error) {
	p.mu.RLock()
	acc, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	p.mu.RUnlock()
	if !ok {
		return session.Session{}, session.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return session.Session{}, session.ErrInvalidCredentials
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issue(acc.user)
}

// SignOut revokes the access token and every refresh token of its owner.
func (p *Provider) SignOut(_ context.Context, accessToken string) error {
	claims, err := p.parse(accessToken, jwt.WithoutClaimsValidation())
	if err != nil {
		return session.ErrInvalidCredentials
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if claims.ExpiresAt != nil {
		p.revoked[claims.ID] = claims.ExpiresAt.Time
	}
	for hash, entry := range p.refreshes {
		if entry.userID == claims.Subject {
			delete(p.refreshes, hash)
		}
	}
	return nil
}

func (p *Provider) GetUser(_ context.Context, accessToken string) (session.User, error) {
	claims, err := p.parse(accessToken)
	if err != nil {
		return session.User{}, session.ErrInvalidCredentials
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userOf(claims)
}

// Refresh returns the session as-is while the access token is valid,
// otherwise it rotates the refresh token and issues a new pair.
// A rotated refresh token replayed within ReuseInterval gets the same new pair.
func (p *Provider) Refresh(_ context.Context, creds session.Credentials) (session.Session, error) {
	if creds.AccessToken != "" {
		if claims, err := p.parse(creds.AccessToken); err == nil {
			p.mu.RLock()
			usr, err := p.userOf(claims)
			p.mu.RUnlock()
			if err == nil {
				return session.Session{Credentials: creds, User: usr, ExpiresAt: claims.ExpiresAt.Time}, nil
			}
		}
	}
	if creds.RefreshToken == "" {
		return session.Session{}, session.ErrInvalidCredentials
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	hash := hashToken(creds.RefreshToken)
	entry, ok := p.refreshes[hash]
	if !ok {
		return session.Session{}, session.ErrInvalidCredentials
	}
	now := p.NowFunc()
	if !now.Before(entry.expiresAt) {
		delete(p.refreshes, hash)
		return session.Session{}, session.ErrInvalidCredentials
	}
	if !entry.rotatedAt.IsZero() {
		if now.Sub(entry.rotatedAt) <= p.ReuseInterval {
			return entry.next, nil
		}
		delete(p.refreshes, hash)
		return session.Session{}, session.ErrInvalidCredentials
	}

	for _, acc := range p.accounts {
		if acc.user.ID == entry.userID {
			sess, err := p.issue(acc.user)
			if err != nil {
				return session.Session{}, err
			}
			entry.rotatedAt, entry.next = now, sess
			p.refreshes[hash] = entry
			return sess, nil
		}
	}
	delete(p.refreshes, hash)
	return session.Session{}, session.ErrInvalidCredentials
}

// issue must be called with the write lock held.
func (p *Provider) issue(usr session.User) (session.Session, error) {
	now := p.NowFunc().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: usr.Email,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "signing access token")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return session.Session{}, errors.Wrap(err, "generating refresh token")
	}
	refresh := base64.RawURLEncoding.EncodeToString(buf)
	p.refreshes[hashToken(refresh)] = refreshEntry{userID: usr.ID, expiresAt: now.Add(p.refreshTTL)}

	p.prune(now)

	return session.Session{
		Credentials: session.Credentials{AccessToken: access, RefreshToken: refresh},
		User:        usr,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (p *Provider) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.NowFunc),
	)
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// userOf must be called with the lock held.
func (p *Provider) userOf(claims *Claims) (session.User, error) {
	if _, ok := p.revoked[claims.ID]; ok {
		return session.User{}, session.ErrInvalidCredentials
	}
	acc, ok := p.accounts[claims.Email]
	if !ok || acc.user.ID != claims.Subject {
		return session.User{}, session.ErrInvalidCredentials
	}
	return acc.user, nil
}

// prune forgets revocations past their token's expiry and refresh tokens that can no longer be used.
func (p *Provider) prune(now time.Time) {
	for id, until := range p.revoked {
		if now.After(until) {
			delete(p.revoked, id)
		}
	}
	for hash, entry := range p.refreshes {
		if !now.Before(entry.expiresAt) || (!entry.rotatedAt.IsZero() && now.Sub(entry.rotatedAt) > p.ReuseInterval) {
			delete(p.refreshes, hash)
		}
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
