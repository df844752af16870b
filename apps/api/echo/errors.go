package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		origErr := errors.Cause(err)
		switch {
		case origErr == user.ErrAccountDeactivated:
			code, message = http.StatusForbidden, origErr.Error()
		case origErr == core.ErrAccessDenied:
			code, message = http.StatusForbidden, "permission denied"
		case core.IsNotFound(err):
			code, message = http.StatusNotFound, origErr.Error()
		case core.IsConflict(err):
			code, message = http.StatusConflict, origErr.Error()
		default:
			switch e := origErr.(type) {
			case *echo.HTTPError:
				if e == middleware.ErrJWTMissing {
					code, message = http.StatusUnauthorized, e.Message
					break
				}
				if herr, ok := e.Internal.(*echo.HTTPError); ok {
					e = herr
				}
				code, message = e.Code, e.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(e))
				for _, vErr := range e {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code, message = http.StatusBadRequest, fldErrs
			case *core.ValidationError:
				if e.Fields != nil {
					fldErrs := make(map[string]string, len(e.Fields))
					for _, fErr := range e.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = e.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(code)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					args = append(args, user.User{ID: claims.Subject, PhoneNumber: claims.PhoneNumber})
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) && signalShutdown != nil {
					signalShutdown()
				}
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				logger.Error("writing error response", err)
			}
		}
	}
}
