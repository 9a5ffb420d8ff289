package echoapi

import (
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/storage/rpc"
)

const (
	contextSessionKey = "session"

	flashSessionName = "shule-flash"
	flashNext        = "next"
	flashInfo        = "info"
	flashError       = "error"
	flashFields      = "fields"
)

func init() {
	gob.Register(map[string]string{})
}

// guard looks the session up for the login and protected paths, renews the credentials cookie
// and redirects the requests the session does not allow. Public paths are left alone.
func (s *Server) guard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		class := s.rules.Classify(req.URL.Path)
		if !class.Guarded() {
			return next(ctx)
		}

		sess, ok := s.lookupSession(ctx)
		decision := s.rules.Decide(class, session.State{Authenticated: ok})
		if decision.Action == session.Redirect {
			if class == session.Protected && req.Method == http.MethodGet {
				s.addFlash(ctx, flashNext, req.URL.RequestURI())
			}
			return s.redirect(ctx, decision.Location)
		}

		if ok {
			ctx.Set(contextSessionKey, sess)
			ctx.SetRequest(req.WithContext(rpc.WithAccessToken(req.Context(), sess.AccessToken)))
		}
		return next(ctx)
	}
}

// lookupSession refreshes the session carried by the request cookie.
// A rejected session clears the cookie; an unreachable provider leaves it in place and fails closed.
func (s *Server) lookupSession(ctx echo.Context) (session.Session, bool) {
	creds := s.cookies.Read(ctx.Request())
	if creds.IsZero() {
		return session.Session{}, false
	}

	sess, err := s.Provider.Refresh(ctx.Request().Context(), creds)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			s.cookies.Clear(ctx.Response())
		} else {
			s.Logger.Warn(fmt.Sprintf("refreshing session: %v", err), err)
		}
		return session.Session{}, false
	}
	if !sess.Valid(time.Now()) {
		s.cookies.Clear(ctx.Response())
		return session.Session{}, false
	}

	if err = s.cookies.Write(ctx.Response(), sess.Credentials); err != nil {
		s.Logger.Error(fmt.Sprintf("writing session cookie: %v", err), err, sess.User)
	}
	return sess, true
}

func currentSession(ctx echo.Context) (session.Session, bool) {
	sess, ok := ctx.Get(contextSessionKey).(session.Session)
	return sess, ok
}

func (s *Server) redirect(ctx echo.Context, location string) error {
	return ctx.Redirect(http.StatusSeeOther, location)
}

// Flashes

func newFlashStore(conf *core.Config) sessions.Store {
	hashKey := sha256.Sum256([]byte("flash.hash." + conf.SecretKey))
	blockKey := sha256.Sum256([]byte("flash.block." + conf.SecretKey))
	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		Secure:   conf.Auth.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) addFlash(ctx echo.Context, key string, value interface{}) {
	fs, err := s.flashes.Get(ctx.Request(), flashSessionName)
	if err != nil && fs == nil {
		s.Logger.Warn(fmt.Sprintf("reading flashes: %v", err), err)
		return
	}
	fs.AddFlash(value, key)
	if err = fs.Save(ctx.Request(), ctx.Response()); err != nil {
		s.Logger.Warn(fmt.Sprintf("saving flashes: %v", err), err)
	}
}

// popFlashes returns and forgets the flashes stored under each key.
func (s *Server) popFlashes(ctx echo.Context, keys ...string) map[string][]interface{} {
	popped := make(map[string][]interface{}, len(keys))
	fs, err := s.flashes.Get(ctx.Request(), flashSessionName)
	if err != nil || fs.IsNew {
		return popped
	}
	for _, key := range keys {
		if flashes := fs.Flashes(key); len(flashes) > 0 {
			popped[key] = flashes
		}
	}
	if len(popped) > 0 {
		if err = fs.Save(ctx.Request(), ctx.Response()); err != nil {
			s.Logger.Warn(fmt.Sprintf("saving flashes: %v", err), err)
		}
	}
	return popped
}

// nextPath returns the remembered destination, provided it stays on this site.
func (s *Server) nextPath(ctx echo.Context, fallback string) string {
	flashes := s.popFlashes(ctx, flashNext)[flashNext]
	if len(flashes) == 0 {
		return fallback
	}
	next, _ := flashes[len(flashes)-1].(string)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
