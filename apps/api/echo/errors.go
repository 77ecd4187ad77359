package echoapi

import (
	"net/http"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
)

var appErrorCodes = map[core.ErrorKind]int{
	core.KindBadRequest:   http.StatusBadRequest,
	core.KindUnauthorized: http.StatusUnauthorized,
	core.KindForbidden:    http.StatusForbidden,
	core.KindNotFound:     http.StatusNotFound,
	core.KindConflict:     http.StatusConflict,
	core.KindInternal:     http.StatusInternalServerError,
}

// errorResponse is the body of every error: the UI shows `detail` as is.
type errorResponse struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

// processingResponse reports a failed upload processing run with its log.
type processingResponse struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error"`
	Details  ingest.Details `json:"details"`
	ExitCode int            `json:"exit_code"`
}

func fieldsDetail(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for fld, msg := range fields {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code = http.StatusInternalServerError
			body interface{}
		)

		switch origErr := errors.Cause(err).(type) {
		case *core.AppError:
			code = appErrorCodes[origErr.Kind]
			body = errorResponse{Detail: origErr.Message}
			if origErr.Kind == core.KindInternal {
				logger.Error(origErr.Message, err)
			}
		case *ingest.ProcessingError:
			code = http.StatusOK
			body = processingResponse{Error: origErr.Message, Details: origErr.Details, ExitCode: 1}
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				body = errorResponse{Detail: "missing or malformed jwt"}
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				body = errorResponse{Detail: msg}
			} else {
				body = errorResponse{Detail: http.StatusText(code)}
			}
		case validator.ValidationErrors:
			fields := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fields[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body = errorResponse{Detail: fieldsDetail(fields), Fields: fields}
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				fields := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fields[fErr.Field] = fErr.Error
				}
				body = errorResponse{Detail: fieldsDetail(fields), Fields: fields}
			} else {
				body = errorResponse{Detail: origErr.Error()}
			}
		default: // any other error is a server error
			msg := http.StatusText(http.StatusInternalServerError)
			detail := "Internal server error"
			if ctx.Echo().Debug {
				detail = err.Error()
			}
			body = errorResponse{Detail: detail}

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
