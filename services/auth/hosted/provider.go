// Package hosted talks to a GoTrue-compatible hosted authentication API.
package hosted

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/shule/core/session"
)

const authPath = "/auth/v1"

// APIError is an error response of the auth API.
type APIError struct {
	Status      int    `json:"-"`
	Code        string `json:"error_code"`
	Message     string `json:"msg"`
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Description
	}
	if msg == "" {
		msg = e.Err
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return "auth api: " + msg
}

type (
	userResponse struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	tokenResponse struct {
		AccessToken  string       `json:"access_token"`
		RefreshToken string       `json:"refresh_token"`
		ExpiresIn    int64        `json:"expires_in"`
		ExpiresAt    int64        `json:"expires_at"`
		User         userResponse `json:"user"`
	}

	Provider struct {
		baseURL   string
		publicKey string
		margin    time.Duration
		client    *rest.Client

		NowFunc func() time.Time // mockable
	}
)

var (
	_ session.Provider      = (*Provider)(nil)
	_ session.Authenticator = (*Provider)(nil)
)

// NewProvider returns a Provider for the auth API at baseURL. Sessions whose access token expires
// within refreshMargin are refreshed. A nil httpClient uses http.DefaultClient.
func NewProvider(baseURL, publicKey string, refreshMargin time.Duration, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		baseURL:   strings.TrimRight(baseURL, "/") + authPath,
		publicKey: publicKey,
		margin:    refreshMargin,
		client:    &rest.Client{HTTPClient: httpClient},
		NowFunc:   time.Now,
	}
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (session.Session, error) {
	var tok tokenResponse
	err := p.send(ctx, rest.Post, "/token", map[string]string{"grant_type": "password"}, "",
		map[string]string{"email": email, "password": password}, &tok)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "signing in")
	}
	return p.sessionOf(tok), nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	return errors.Wrap(p.send(ctx, rest.Post, "/logout", nil, accessToken, nil, nil), "signing out")
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (session.User, error) {
	// the API answers with the user, or with a session when sign-ups are auto-confirmed
	var res struct {
		userResponse
		User *userResponse `json:"user"`
	}
	err := p.send(ctx, rest.Post, "/signup", nil, "", map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		return session.User{}, errors.Wrap(err, "signing up")
	}
	usr := res.userResponse
	if res.User != nil {
		usr = *res.User
	}
	return session.User{ID: usr.ID, Email: usr.Email}, nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (session.User, error) {
	var usr userResponse
	if err := p.send(ctx, rest.Get, "/user", nil, accessToken, nil, &usr); err != nil {
		return session.User{}, errors.Wrap(err, "getting user")
	}
	return session.User{ID: usr.ID, Email: usr.Email}, nil
}

// Refresh validates the access token against the API while it is far from expiry,
// otherwise it exchanges the refresh token for a new session.
func (p *Provider) Refresh(ctx context.Context, creds session.Credentials) (session.Session, error) {
	if creds.AccessToken != "" {
		if exp, ok := expiryOf(creds.AccessToken); ok && p.NowFunc().Add(p.margin).Before(exp) {
			usr, err := p.GetUser(ctx, creds.AccessToken)
			if err == nil {
				return session.Session{Credentials: creds, User: usr, ExpiresAt: exp}, nil
			}
			if !errors.Is(err, session.ErrInvalidCredentials) {
				return session.Session{}, err
			}
		}
	}
	if creds.RefreshToken == "" {
		return session.Session{}, session.ErrInvalidCredentials
	}

	var tok tokenResponse
	err := p.send(ctx, rest.Post, "/token", map[string]string{"grant_type": "refresh_token"}, "",
		map[string]string{"refresh_token": creds.RefreshToken}, &tok)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "refreshing session")
	}
	return p.sessionOf(tok), nil
}

func (p *Provider) sessionOf(tok tokenResponse) session.Session {
	sess := session.Session{
		Credentials: session.Credentials{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken},
		User:        session.User{ID: tok.User.ID, Email: tok.User.Email},
	}
	switch {
	case tok.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tok.ExpiresAt, 0).UTC()
	case tok.ExpiresIn > 0:
		sess.ExpiresAt = p.NowFunc().Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
	default:
		sess.ExpiresAt, _ = expiryOf(tok.AccessToken)
	}
	return sess
}

// send calls the auth API. Rejected credentials (400, 401, 403, 404 on a token grant)
// are reported as session.ErrInvalidCredentials, wrapping the APIError.
func (p *Provider) send(ctx context.Context, method rest.Method, path string, query map[string]string, bearer string, payload, dest interface{}) error {
	if bearer == "" {
		bearer = p.publicKey
	}
	req := rest.Request{
		Method:      method,
		BaseURL:     p.baseURL + path,
		QueryParams: query,
		Headers: map[string]string{
			"apikey":        p.publicKey,
			"Authorization": "Bearer " + bearer,
			"Accept":        "application/json",
		},
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encoding payload")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := p.client.SendWithContext(ctx, req)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: res.StatusCode}
		_ = json.Unmarshal([]byte(res.Body), apiErr)
		switch res.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
			if path != "/signup" {
				return &invalidCredentials{apiErr}
			}
		case http.StatusNotFound:
			if path == "/user" {
				return &invalidCredentials{apiErr}
			}
		}
		return apiErr
	}
	if dest == nil || strings.TrimSpace(res.Body) == "" {
		return nil
	}
	return errors.Wrap(json.Unmarshal([]byte(res.Body), dest), "decoding response")
}

type invalidCredentials struct {
	*APIError
}

func (e *invalidCredentials) Is(target error) bool { return target == session.ErrInvalidCredentials }
func (e *invalidCredentials) Unwrap() error        { return e.APIError }

// expiryOf reads the exp claim of a JWT without verifying it; the API verifies the token.
func expiryOf(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
