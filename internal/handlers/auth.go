package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_app/internal/mykafka"
	"github.com/Skotchmaster/order_app/internal/repo"
	"github.com/Skotchmaster/order_app/internal/service"
	"github.com/Skotchmaster/order_app/internal/validation"
)

type AuthHandler struct {
	Tokens   *service.TokenService
	Repo     *repo.GormRepo
	Producer *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["login"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// Register handles POST /register. Shape checks run first, then the
// uniqueness pre-checks; the unique indexes close the remaining race.
func (h *AuthHandler) Register(c echo.Context) error {
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	required := []string{"login", "password", "username", "phone", "email"}
	if err := validation.Fields(required, body, "POST"); err != nil {
		return badRequest(err)
	}
	if err := validation.Password(body["password"]); err != nil {
		return badRequest(err)
	}
	if err := validation.String(body["username"], "username", 30); err != nil {
		return badRequest(err)
	}

	ctx := c.Request().Context()
	if err := validation.Login(ctx, h.Repo, body["login"]); err != nil {
		return badRequest(err)
	}
	if err := validation.Email(ctx, h.Repo, body["email"]); err != nil {
		return badRequest(err)
	}
	if err := validation.Phone(ctx, h.Repo, body["phone"]); err != nil {
		return badRequest(err)
	}

	login := body["login"].(string)
	customer, err := h.Tokens.Register(ctx, login,
		body["password"].(string),
		body["username"].(string),
		body["email"].(string),
		body["phone"].(string),
	)
	if err != nil {
		return serviceError(c, err)
	}

	h.publish(c, map[string]any{
		"type":       "customer_registered",
		"login":      login,
		"customerID": customer.ID,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": fmt.Sprintf("registration of %s has been completed - you can /login now", login),
	})
}

// Login handles POST /login.
func (h *AuthHandler) Login(c echo.Context) error {
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if err := validation.Fields([]string{"login", "password"}, body, "POST"); err != nil {
		return badRequest(err)
	}
	login, ok1 := body["login"].(string)
	password, ok2 := body["password"].(string)
	if !ok1 || !ok2 {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
	}

	pair, err := h.Tokens.Login(c.Request().Context(), login, password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh handles POST /refresh, rotating the stored token pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if err := validation.Fields([]string{"refreshToken"}, body, "POST"); err != nil {
		return badRequest(err)
	}
	raw, ok := body["refreshToken"].(string)
	if !ok || raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token is missing")
	}

	pair, err := h.Tokens.Refresh(c.Request().Context(), raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, pair)
}

// Profile handles GET /profile for the acting customer.
func (h *AuthHandler) Profile(c echo.Context) error {
	if err := validation.Role(actingRole(c), "customer"); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	customer, err := h.Repo.FindCustomer(c.Request().Context(), actingCustomerID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "customer profile not found")
	}
	return c.JSON(http.StatusOK, customer)
}
