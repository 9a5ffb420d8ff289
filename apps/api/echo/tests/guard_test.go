package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/tests"
)

func TestGuard(t *testing.T) {
	env := setup(t)
	cookies := env.signIn(t)
	tampered := []*http.Cookie{{Name: cookieName, Value: "bm90LWEtc2Vzc2lvbg"}}

	tests := []struct {
		name         string
		path         string
		cookies      []*http.Cookie
		wantCode     int
		wantLocation string
		wantLookups  int
		wantRenewed  bool
	}{
		{name: "protected, no cookie", path: "/dashboard", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "protected sub-path, no cookie", path: "/dashboard/branches", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "profile, no cookie", path: "/profile", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{
			name: "protected, tampered cookie", path: "/dashboard", cookies: tampered,
			wantCode: http.StatusSeeOther, wantLocation: "/login",
		},
		{
			name: "protected, valid session", path: "/dashboard", cookies: cookies,
			wantCode: http.StatusOK, wantLookups: 1, wantRenewed: true,
		},
		{
			name: "login, valid session", path: "/login", cookies: cookies,
			wantCode: http.StatusSeeOther, wantLocation: "/", wantLookups: 1, wantRenewed: true,
		},
		{name: "login, no cookie", path: "/login", wantCode: http.StatusOK},
		{name: "public, no cookie", path: "/about", wantCode: http.StatusOK},
		{name: "public, valid session", path: "/about", cookies: cookies, wantCode: http.StatusOK},
		{name: "root, valid session", path: "/", cookies: cookies, wantCode: http.StatusOK},
		{name: "look-alike prefix", path: "/dashboards", cookies: cookies, wantCode: http.StatusNotFound},
		{name: "trailing slash", path: "/dashboard/", wantCode: http.StatusSeeOther, wantLocation: "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.provider.Calls()

			req, rec := newPageRequest(http.MethodGet, tt.path, tt.cookies)
			env.serve(req, rec)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.Equal(t, tt.wantLookups, env.provider.Calls()-before)

			renewed := findCookie(rec, cookieName)
			if tt.wantRenewed {
				require.NotNil(t, renewed)
				assert.Equal(t, 3600, renewed.MaxAge)
				assert.True(t, renewed.HttpOnly)
			} else if renewed != nil {
				assert.Negative(t, renewed.MaxAge, "only a cleared cookie may be written")
			}
		})
	}
}

func TestGuard_remembersDestination(t *testing.T) {
	env := setup(t)
	_, err := env.auth.SignUp(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	req, rec := newPageRequest(http.MethodGet, "/dashboard/trials?status=scheduled", nil)
	env.serve(req, rec)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	form := url.Values{"email": {testEmail}, "password": {testPassword}}
	req, rec = newFormRequest(http.MethodPost, "/login", form, withCookies(nil, rec)...)
	env.serve(req, rec)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/trials?status=scheduled", rec.Header().Get("Location"))
	assert.NotNil(t, findCookie(rec, cookieName))
}

func TestGuard_invalidCredentialsClearCookie(t *testing.T) {
	env := setup(t)
	cookies := env.signIn(t)

	creds := readCredentials(t, cookies)
	require.NoError(t, env.auth.SignOut(context.Background(), creds.AccessToken))

	req, rec := newPageRequest(http.MethodGet, "/dashboard", cookies)
	env.serve(req, rec)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := findCookie(rec, cookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestGuard_unreachableProviderFailsClosed(t *testing.T) {
	env := setup(t, testutil.UnreachableProvider{})
	cookies := env.signIn(t)

	req, rec := newPageRequest(http.MethodGet, "/dashboard", cookies)
	env.serve(req, rec)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, cookieName), "the cookie is kept for when the provider is back")
	assert.Equal(t, 1, env.provider.Calls())
	assert.NotEmpty(t, env.logger.Entries("warn"))

	// public pages keep working
	req, rec = newPageRequest(http.MethodGet, "/about", cookies)
	env.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.provider.Calls())
}

func TestGuard_concurrentRenewalKeepsSession(t *testing.T) {
	env := setup(t)
	cookies := env.signIn(t)

	// the access token has expired; two requests race with the same cookie
	later := time.Now().Add(2 * time.Hour)
	env.auth.NowFunc = func() time.Time { return later }

	for i := 1; i <= 2; i++ {
		req, rec := newPageRequest(http.MethodGet, "/dashboard", cookies)
		env.serve(req, rec)

		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		renewed := findCookie(rec, cookieName)
		require.NotNil(t, renewed, "request %d", i)
		assert.Positive(t, renewed.MaxAge, "request %d", i)
	}
}

// readCredentials decodes the session cookie by replaying it through a codec sharing the server secret.
func readCredentials(t *testing.T, cookies []*http.Cookie) session.Credentials {
	conf := testConfig()
	codec := session.NewCookieCodec(conf.Auth.CookieName, conf.SecretKey, false, conf.Auth.CookieMaxAge)
	req, _ := newRequest(http.MethodGet, "/", cookies)
	creds := codec.Read(req)
	require.False(t, creds.IsZero())
	return creds
}
