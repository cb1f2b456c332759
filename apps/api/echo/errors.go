package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, user.ErrAccountDeactivated.Error())
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, core.ErrForbidden.Error())
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// badRequestErrors are plain domain errors reported as 400s.
var badRequestErrors = []error{
	user.ErrAuthenticationFailed,
	job.ErrUnknownKind,
	report.ErrUnknownFormat,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.NotFoundError:
			code = http.StatusNotFound
			message = origErr.Error()
		default:
			switch {
			case cause == core.ErrForbidden:
				code = http.StatusForbidden
				message = cause.Error()
			case cause == user.ErrAccountDeactivated:
				code = http.StatusForbidden
				message = cause.Error()
			case isBadRequest(cause):
				code = http.StatusBadRequest
				message = cause.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var person core.Person
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					person.ID = claims.Subject
				}
				logger.Error(msg, errors.Wrap(err, msg), person)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func isBadRequest(err error) bool {
	for _, e := range badRequestErrors {
		if err == e {
			return true
		}
	}
	return false
}
