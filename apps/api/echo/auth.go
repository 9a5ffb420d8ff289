package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/session"
)

const (
	defaultLandingPath = "/dashboard"
	errInvalidLogin    = "Invalid email or password."
)

type (
	LoginRequest struct {
		Email    string `json:"email" form:"email" validate:"required,email"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	profileView struct {
		User      session.User `json:"user"`
		ExpiresAt time.Time    `json:"expires_at"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func registerAuthRoutes(s *Server) {
	s.app.GET(s.rules.LoginPath, s.loginPage)
	s.app.POST(s.rules.LoginPath, s.login)
	s.app.POST("/logout", s.logout)
	s.app.GET("/profile", s.profile)
}

func (s *Server) loginPage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "login", "Sign in", nil)
}

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return s.loginFailed(ctx, err)
	}

	sess, err := s.Authenticator.SignIn(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return s.loginFailed(ctx, echo.NewHTTPError(http.StatusBadRequest, errInvalidLogin))
		}
		return errors.Wrap(err, "signing in")
	}
	if err = s.cookies.Write(ctx.Response(), sess.Credentials); err != nil {
		return err
	}

	s.Logger.Info(fmt.Sprintf("%s signed in", sess.User.Email))
	if !wantsHTML(ctx) {
		return ctx.JSON(http.StatusOK, sess.User)
	}
	return s.redirect(ctx, s.nextPath(ctx, defaultLandingPath))
}

// loginFailed sends browsers back to the login form with the error flashed.
func (s *Server) loginFailed(ctx echo.Context, err error) error {
	if !wantsHTML(ctx) {
		return err
	}
	code, message := s.describeError(err)
	if code >= http.StatusInternalServerError {
		return err
	}
	if fields, ok := message.(map[string]string); ok {
		s.addFlash(ctx, flashFields, fields)
	} else {
		s.addFlash(ctx, flashError, messages(message)[0])
	}
	return s.redirect(ctx, s.rules.LoginPath)
}

// logout revokes the session when there is one and always clears the cookie.
func (s *Server) logout(ctx echo.Context) error {
	creds := s.cookies.Read(ctx.Request())
	if creds.AccessToken != "" {
		if err := s.Authenticator.SignOut(ctx.Request().Context(), creds.AccessToken); err != nil && !errors.Is(err, session.ErrInvalidCredentials) {
			s.Logger.Warn(fmt.Sprintf("signing out: %v", err), err)
		}
	}
	s.cookies.Clear(ctx.Response())
	return s.redirect(ctx, s.rules.LoginPath)
}

func (s *Server) profile(ctx echo.Context) error {
	sess, ok := currentSession(ctx)
	if !ok {
		return session.ErrUnauthenticated
	}
	view := profileView{User: sess.User, ExpiresAt: sess.ExpiresAt}
	if !wantsHTML(ctx) {
		return ctx.JSON(http.StatusOK, view)
	}
	return s.render(ctx, http.StatusOK, "profile", "Profile", view)
}
