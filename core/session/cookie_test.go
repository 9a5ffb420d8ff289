package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieCodec_roundTrip(t *testing.T) {
	cc := NewCookieCodec("shule-auth", "s3cr3t", false, time.Hour)
	creds := Credentials{AccessToken: "access", RefreshToken: "refresh"}

	rec := httptest.NewRecorder()
	require.NoError(t, cc.Write(rec, creds))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "shule-auth", cookies[0].Name)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, cookies[0].Value, "access")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, creds, cc.Read(req))
}

func TestCookieCodec_Read(t *testing.T) {
	cc := NewCookieCodec("shule-auth", "s3cr3t", false, time.Hour)
	other := NewCookieCodec("shule-auth", "another secret", false, time.Hour)

	rec := httptest.NewRecorder()
	require.NoError(t, other.Write(rec, Credentials{AccessToken: "a", RefreshToken: "r"}))
	forged := rec.Result().Cookies()[0]

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie"},
		{name: "garbage", cookie: &http.Cookie{Name: "shule-auth", Value: "lol"}},
		{name: "signed with another key", cookie: forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			assert.True(t, cc.Read(req).IsZero())
		})
	}
}

func TestCookieCodec_Clear(t *testing.T) {
	cc := NewCookieCodec("shule-auth", "s3cr3t", true, time.Hour)
	rec := httptest.NewRecorder()
	cc.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
	assert.True(t, cookies[0].Secure)
}

func TestSession_Valid(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	usr := User{ID: "u1", Email: "a@test.cd"}
	creds := Credentials{AccessToken: "a", RefreshToken: "r"}

	assert.False(t, Session{}.Valid(now))
	assert.False(t, Session{Credentials: creds}.Valid(now))
	assert.True(t, Session{Credentials: creds, User: usr}.Valid(now))
	assert.True(t, Session{Credentials: creds, User: usr, ExpiresAt: now.Add(time.Minute)}.Valid(now))
	assert.False(t, Session{Credentials: creds, User: usr, ExpiresAt: now}.Valid(now))
}
