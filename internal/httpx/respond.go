package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/logging"
)

// Every response goes through the same envelope so clients can branch on a
// single success flag.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// ErrorHandler is the single boundary translator: apperr kinds map to status
// and code, gorm constraint errors are reclassified instead of leaking raw
// database messages.
func ErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		kind := apperr.KindOf(err)
		message := "internal server error"
		var details any

		var ae *apperr.Error
		switch {
		case errors.As(err, &ae):
			kind = ae.Kind
			message = ae.Message
			details = ae.Details
		case errors.Is(err, gorm.ErrRecordNotFound):
			kind = apperr.KindNotFound
			message = "record not found"
		case errors.Is(err, gorm.ErrDuplicatedKey):
			kind = apperr.KindConflict
			message = "duplicate record"
		default:
			var he *echo.HTTPError
			if errors.As(err, &he) {
				kind = kindFromStatus(he.Code)
				if s, ok := he.Message.(string); ok {
					message = s
				}
			}
		}

		if kind == apperr.KindInternal {
			logging.FromContext(c.Request().Context()).Error("unhandled error", "error", err)
			if !production {
				message = err.Error()
			}
		}

		body := Envelope{Success: false, Error: &ErrorBody{
			Message: message,
			Code:    kind.Code(),
			Details: details,
		}}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(kind.HTTPStatus())
			return
		}
		_ = c.JSON(kind.HTTPStatus(), body)
	}
}

func kindFromStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindBadRequest
	case http.StatusUnauthorized:
		return apperr.KindUnauthorized
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	default:
		return apperr.KindInternal
	}
}
