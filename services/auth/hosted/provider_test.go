package hosted

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/session"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-side secret"))
	require.NoError(t, err)
	return tok
}

type request struct {
	method, path, query, apikey, auth string
	body                              map[string]string
}

// fakeAuthAPI serves the token, user, logout and signup endpoints.
type fakeAuthAPI struct {
	mu       sync.Mutex
	requests []request

	validAccess  string
	validRefresh string
	issued       string
}

func (f *fakeAuthAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := request{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		apikey: r.Header.Get("apikey"),
		auth:   r.Header.Get("Authorization"),
	}
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &req.body)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	reply := func(status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	user := `{"id":"u1","email":"admin@shule.cd"}`
	grant := `{"access_token":"` + f.issued + `","refresh_token":"r2","expires_in":3600,"expires_at":1709283600,"user":` + user + `}`

	switch r.URL.Path {
	case "/auth/v1/token":
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if req.body["password"] == "Sup3r-S3cret!" {
				reply(http.StatusOK, grant)
				return
			}
		case "refresh_token":
			if req.body["refresh_token"] == f.validRefresh {
				reply(http.StatusOK, grant)
				return
			}
		}
		reply(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	case "/auth/v1/user":
		if req.auth == "Bearer "+f.validAccess {
			reply(http.StatusOK, user)
			return
		}
		reply(http.StatusUnauthorized, `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`)
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	case "/auth/v1/signup":
		if req.body["email"] == "admin@shule.cd" {
			reply(http.StatusUnprocessableEntity, `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`)
			return
		}
		reply(http.StatusOK, `{"access_token":"a","user":{"id":"u2","email":"`+req.body["email"]+`"}}`)
	default:
		reply(http.StatusNotFound, `{}`)
	}
}

func (f *fakeAuthAPI) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paths []string
	for _, r := range f.requests {
		paths = append(paths, r.method+" "+r.path)
	}
	return paths
}

func setup(t *testing.T) (*Provider, *fakeAuthAPI) {
	t.Helper()
	api := &fakeAuthAPI{
		validAccess:  token(t, now.Add(30*time.Minute)),
		validRefresh: "r1",
		issued:       token(t, now.Add(time.Hour)),
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	p := NewProvider(srv.URL, "anon-key", 5*time.Minute, srv.Client())
	p.NowFunc = func() time.Time { return now }
	return p, api
}

func TestProvider_SignIn(t *testing.T) {
	p, api := setup(t)

	sess, err := p.SignIn(context.Background(), "admin@shule.cd", "Sup3r-S3cret!")
	require.NoError(t, err)
	assert.Equal(t, session.User{ID: "u1", Email: "admin@shule.cd"}, sess.User)
	assert.Equal(t, api.issued, sess.AccessToken)
	assert.Equal(t, "r2", sess.RefreshToken)
	assert.Equal(t, time.Unix(1709283600, 0).UTC(), sess.ExpiresAt)

	req := api.requests[0]
	assert.Equal(t, "grant_type=password", req.query)
	assert.Equal(t, "anon-key", req.apikey)
	assert.Equal(t, "Bearer anon-key", req.auth)
	assert.Equal(t, map[string]string{"email": "admin@shule.cd", "password": "Sup3r-S3cret!"}, req.body)

	_, err = p.SignIn(context.Background(), "admin@shule.cd", "nope")
	assert.True(t, errors.Is(err, session.ErrInvalidCredentials))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "auth api: Invalid login credentials", apiErr.Error())
}

func TestProvider_Refresh(t *testing.T) {
	tests := []struct {
		name      string
		creds     func(api *fakeAuthAPI) session.Credentials
		wantErr   error
		wantToken func(api *fakeAuthAPI) string
		wantCalls []string
	}{
		{
			name:      "fresh access token is only validated",
			creds:     func(api *fakeAuthAPI) session.Credentials { return session.Credentials{AccessToken: api.validAccess, RefreshToken: "r1"} },
			wantToken: func(api *fakeAuthAPI) string { return api.validAccess },
			wantCalls: []string{"GET /auth/v1/user"},
		},
		{
			name: "access token within the refresh margin",
			creds: func(t *testing.T) func(api *fakeAuthAPI) session.Credentials {
				tok := token(t, now.Add(2*time.Minute))
				return func(*fakeAuthAPI) session.Credentials { return session.Credentials{AccessToken: tok, RefreshToken: "r1"} }
			}(t),
			wantToken: func(api *fakeAuthAPI) string { return api.issued },
			wantCalls: []string{"POST /auth/v1/token"},
		},
		{
			name: "revoked access token",
			creds: func(t *testing.T) func(api *fakeAuthAPI) session.Credentials {
				tok := token(t, now.Add(50*time.Minute))
				return func(*fakeAuthAPI) session.Credentials { return session.Credentials{AccessToken: tok, RefreshToken: "r1"} }
			}(t),
			wantToken: func(api *fakeAuthAPI) string { return api.issued },
			wantCalls: []string{"GET /auth/v1/user", "POST /auth/v1/token"},
		},
		{
			name:      "no access token",
			creds:     func(*fakeAuthAPI) session.Credentials { return session.Credentials{RefreshToken: "r1"} },
			wantToken: func(api *fakeAuthAPI) string { return api.issued },
			wantCalls: []string{"POST /auth/v1/token"},
		},
		{
			name:      "dead refresh token",
			creds:     func(*fakeAuthAPI) session.Credentials { return session.Credentials{AccessToken: "garbage", RefreshToken: "r0"} },
			wantErr:   session.ErrInvalidCredentials,
			wantCalls: []string{"POST /auth/v1/token"},
		},
		{
			name:    "no credentials",
			creds:   func(*fakeAuthAPI) session.Credentials { return session.Credentials{} },
			wantErr: session.ErrInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, api := setup(t)
			sess, err := p.Refresh(context.Background(), tt.creds(api))
			assert.Equal(t, tt.wantCalls, api.paths())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken(api), sess.AccessToken)
			assert.Equal(t, "u1", sess.User.ID)
			assert.True(t, sess.Valid(now))
		})
	}
}

func TestProvider_Refresh_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	p := NewProvider(srv.URL, "anon-key", time.Minute, nil)

	_, err := p.Refresh(context.Background(), session.Credentials{RefreshToken: "r1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, session.ErrInvalidCredentials))
}

func TestProvider_SignUp(t *testing.T) {
	p, api := setup(t)

	usr, err := p.SignUp(context.Background(), "teacher@shule.cd", "Teach3r!")
	require.NoError(t, err)
	assert.Equal(t, session.User{ID: "u2", Email: "teacher@shule.cd"}, usr)

	_, err = p.SignUp(context.Background(), "admin@shule.cd", "Teach3r!")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "user_already_exists", apiErr.Code)
	assert.False(t, errors.Is(err, session.ErrInvalidCredentials))
	assert.Equal(t, []string{"POST /auth/v1/signup", "POST /auth/v1/signup"}, api.paths())
}

func TestProvider_SignOut(t *testing.T) {
	p, api := setup(t)

	require.NoError(t, p.SignOut(context.Background(), api.validAccess))
	assert.Equal(t, "Bearer "+api.validAccess, api.requests[0].auth)
	assert.Equal(t, []string{"POST /auth/v1/logout"}, api.paths())
}
