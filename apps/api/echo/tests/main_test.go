package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/assets"
	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/services/auth/local"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/tests"
)

const (
	cookieName   = "shule-auth"
	testEmail    = "admin@shule.test"
	testPassword = "Shul3!2024"
)

type (
	httpErr struct {
		Error string `json:"error"`
	}

	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		cookies  []*http.Cookie
		wantCode int
		wantData []byte
		extra    interface{}
	}

	testEnv struct {
		app      *Server
		caller   *testutil.FakeCaller
		provider *testutil.CountingProvider
		auth     *local.Provider
		logger   *testutil.Logger
	}
)

func testConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Shule",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://shule.test",
		DefaultFromEmail: mail.Address{Name: "Shule", Address: "noreply@shule.test"},
		AdmissionsEmail:  mail.Address{Name: "Admissions", Address: "admissions@shule.test"},
		Auth: core.AuthConfig{
			Provider:          core.AuthLocal,
			CookieName:        cookieName,
			CookieMaxAge:      time.Hour,
			ProtectedPrefixes: []string{"/dashboard", "/profile"},
			LoginPath:         "/login",
			RootPath:          "/",
			AccessTokenTTL:    time.Hour,
			RefreshTokenTTL:   24 * time.Hour,
		},
	}
}

// setup returns a server backed by the in-memory caller and the local identity provider.
// provider replaces the session provider the guard talks to.
func setup(t *testing.T, provider ...session.Provider) *testEnv {
	conf := testConfig()
	logger := testutil.NewLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate)

	core.ParseEmailTemplates(assets.FS, conf, logger)
	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	auth := local.NewProvider(conf.SecretKey, conf.Auth.AccessTokenTTL, conf.Auth.RefreshTokenTTL)
	var guarded session.Provider = auth
	if len(provider) > 0 {
		guarded = provider[0]
	}
	counting := testutil.NewCountingProvider(guarded)

	caller := testutil.NewFakeCaller()
	app := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		SchoolSvc:     school.NewService(caller, validate, mailSvc, conf),
		Provider:      counting,
		Authenticator: auth,
		MailSvc:       mailSvc,
		Validate:      validate,
		Translator:    translator,
		Assets:        assets.FS,
	})
	require.Empty(t, logger.Entries("fatal"), "templates must parse")

	return &testEnv{
		app:      app,
		caller:   caller,
		provider: counting,
		auth:     auth,
		logger:   logger,
	}
}

// signIn registers the test account and signs in through the login form; it returns the session cookie.
func (env *testEnv) signIn(t *testing.T) []*http.Cookie {
	_, err := env.auth.SignUp(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	form := url.Values{"email": {testEmail}, "password": {testPassword}}
	req, rec := newFormRequest(http.MethodPost, "/login", form)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	cookie := findCookie(rec, cookieName)
	require.NotNil(t, cookie, "session cookie")
	return []*http.Cookie{cookie}
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.app.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, path string, cookies []*http.Cookie, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req, httptest.NewRecorder()
}

// newPageRequest is a browser navigation.
func newPageRequest(method, path string, cookies []*http.Cookie) (*http.Request, *httptest.ResponseRecorder) {
	req, rec := newRequest(method, path, cookies)
	req.Header.Del(echo.HeaderContentType)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	return req, rec
}

// newFormRequest is a browser form submission.
func newFormRequest(method, path string, form url.Values, cookies ...*http.Cookie) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req, httptest.NewRecorder()
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withCookies merges the cookies set by rec into cookies, dropping the expired ones.
func withCookies(cookies []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	merged := make(map[string]*http.Cookie)
	for _, c := range cookies {
		merged[c.Name] = c
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(merged, c.Name)
			continue
		}
		merged[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(merged))
	for _, c := range merged {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
