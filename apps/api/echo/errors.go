package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errSessionExpired       = echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	notReadyText = "The school data could not be loaded from the server."
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
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
		case *portal.MutationError:
			// the local change was already undone or reloaded
			code = http.StatusBadGateway
			msg := echo.Map{"error": origErr.Message}
			if origErr.Hint != "" {
				msg["hint"] = origErr.Hint
			}
			message = msg

			if core.IsShutdown(origErr.Err) {
				logger.Error("remote store is shutting down", origErr.Err)
				signalShutdown()
			}
		default:
			switch origErr {
			case portal.ErrNotReady:
				code = http.StatusServiceUnavailable
				message = echo.Map{"error": notReadyText, "retry": true}
			case portal.ErrNotFound:
				code = http.StatusNotFound
				message = errHttpNotFound.Message
			case portal.ErrSessionExpired:
				code = http.StatusUnauthorized
				message = errSessionExpired.Message
			case school.ErrPollExpired, school.ErrUnknownOption:
				code = http.StatusBadRequest
				message = origErr.Error()
			case user.ErrInvalidCredentials:
				code = http.StatusBadRequest
				message = errAuthenticationFailed.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				if usr, uErr := getContextUser(ctx); uErr == nil {
					logger.Error(msg, errors.Wrap(err, msg), usr)
				} else {
					logger.Error(msg, errors.Wrap(err, msg))
				}

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
