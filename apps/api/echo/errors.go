package echoapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/storage/rpc"
)

const errNoResult = "the remote database did not return the new record"

// describeError maps err to the response status and a message which is either a string or a {field: message} map.
// Only server errors (5xx) are left unexplained.
func (s *Server) describeError(err error) (code int, message interface{}) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case *echo.BindingError:
		return http.StatusBadRequest, map[string]string{origErr.Field: "invalid value"}
	case validator.ValidationErrors:
		return http.StatusBadRequest, core.TranslateErrors(origErr, s.Translator)
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	case *rpc.RemoteError:
		return http.StatusBadRequest, origErr.Message
	}

	switch errors.Cause(err) {
	case school.ErrNotFound:
		return http.StatusNotFound, school.ErrNotFound.Error()
	case session.ErrUnauthenticated:
		return http.StatusUnauthorized, session.ErrUnauthenticated.Error()
	case rpc.ErrNoResult:
		return http.StatusBadGateway, errNoResult
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(s *Server, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := s.describeError(err)

		if code == http.StatusInternalServerError {
			msg := http.StatusText(code)
			if sess, ok := currentSession(ctx); ok {
				s.Logger.Error(msg, errors.Wrap(err, msg), sess.User)
			} else {
				s.Logger.Error(msg, errors.Wrap(err, msg))
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		switch {
		case ctx.Request().Method == http.MethodHead: // Issue #608
			err = ctx.NoContent(code)
		case wantsHTML(ctx):
			if code == http.StatusUnauthorized {
				err = s.redirect(ctx, s.rules.LoginPath)
				break
			}
			err = s.render(ctx, code, "error", http.StatusText(code), errorView{Code: code, Messages: messages(message)})
		default:
			if m, ok := message.(string); ok {
				message = echo.Map{"error": m}
			}
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

type errorView struct {
	Code     int
	Messages []string
}

// wantsHTML tells browsers apart from API clients.
func wantsHTML(ctx echo.Context) bool {
	req := ctx.Request()
	if strings.HasPrefix(req.URL.Path, apiPrefix) {
		return false
	}
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func messages(message interface{}) []string {
	switch m := message.(type) {
	case string:
		return []string{m}
	case map[string]string:
		msgs := make([]string, 0, len(m))
		for fld, msg := range m {
			msgs = append(msgs, fld+": "+msg)
		}
		sort.Strings(msgs)
		return msgs
	default:
		return []string{http.StatusText(http.StatusBadRequest)}
	}
}
