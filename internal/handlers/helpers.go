package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_app/internal/logging"
	"github.com/Skotchmaster/order_app/internal/service"
	"github.com/Skotchmaster/order_app/internal/validation"
)

// bindBody decodes the request body into a map so the validation layer can
// check the field set before anything is converted to typed input.
func bindBody(c echo.Context) (map[string]any, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be valid JSON")
	}
	return body, nil
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return uint(id), nil
}

func actingRole(c echo.Context) string {
	if r, ok := c.Get("role").(string); ok {
		return r
	}
	return ""
}

func actingCustomerID(c echo.Context) uint {
	if id, ok := c.Get("customerID").(uint); ok {
		return id
	}
	return 0
}

// badRequest wraps a validation-layer error, using 409 for uniqueness
// failures.
func badRequest(err error) error {
	if errors.Is(err, validation.ErrTaken) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// serviceError maps the service sentinels onto HTTP codes. Unclassified
// errors are store failures: log the detail, answer with a generic 500.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	logging.FromContext(c.Request().Context()).Error("store failure", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "server error")
}
