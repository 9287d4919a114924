package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, err error) (int, Envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Handler(err, c)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestHandler_HTTPError(t *testing.T) {
	code, env := render(t, echo.NewHTTPError(http.StatusForbidden, "order 1 does not belong to you"))

	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, http.StatusForbidden, env.Status)
	assert.Equal(t, "Forbidden", env.StatusText)
	assert.Equal(t, "order 1 does not belong to you", env.Message)
}

func TestHandler_PlainError(t *testing.T) {
	code, env := render(t, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, http.StatusInternalServerError, env.Status)
	assert.Equal(t, "Internal Server Error", env.StatusText)
	assert.Equal(t, "boom", env.Message)
}
