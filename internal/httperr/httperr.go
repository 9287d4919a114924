package httperr

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the error body every endpoint returns.
type Envelope struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Message    string `json:"message"`
}

// Handler renders every error as the envelope with a matching HTTP code.
// Wire it as echo's HTTPErrorHandler.
func Handler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		default:
			msg = fmt.Sprint(m)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, Envelope{Status: code, StatusText: http.StatusText(code), Message: msg})
}
