package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_app/internal/models"
	"github.com/Skotchmaster/order_app/internal/mykafka"
	"github.com/Skotchmaster/order_app/internal/service"
	"github.com/Skotchmaster/order_app/internal/validation"
)

type OrderHandler struct {
	Svc      *service.OrderService
	Store    validation.Store
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// CreateOrder handles POST /orders. The validation cascade runs in full
// before any row is written; the insert itself is one transaction.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if err := validation.Fields([]string{"customerId", "items"}, body, "POST"); err != nil {
		return badRequest(err)
	}

	ctx := c.Request().Context()
	if err := validation.ID(ctx, body["customerId"], "customer", h.Store.CustomerExists); err != nil {
		return badRequest(err)
	}
	if err := validation.Items(ctx, h.Store, body["items"]); err != nil {
		return badRequest(err)
	}

	customerID := uint(body["customerId"].(float64))
	items := toItemInputs(body["items"].([]any))

	order, orderItems, err := h.Svc.CreateOrder(ctx, customerID, items)
	if err != nil {
		return serviceError(c, err)
	}

	h.publish(c, map[string]any{
		"type":       "order_created",
		"orderID":    order.ID,
		"customerID": order.CustomerID,
		"items":      len(orderItems),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "order created",
		"order":   order,
		"items":   orderItems,
	})
}

// ChangeStatus handles PATCH /orders/:id.
func (h *OrderHandler) ChangeStatus(c echo.Context) error {
	orderID, err := pathID(c)
	if err != nil {
		return err
	}
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if err := validation.Fields([]string{"status"}, body, "PATCH"); err != nil {
		return badRequest(err)
	}
	status, ok := body["status"].(string)
	if !ok || status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "field status must be a non-empty string")
	}

	order, err := h.Svc.ChangeStatus(c.Request().Context(), orderID, status, actingRole(c), actingCustomerID(c))
	if err != nil {
		return serviceError(c, err)
	}

	h.publish(c, map[string]any{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"status":  order.Status,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": fmt.Sprintf("order set to %s", order.Status),
		"order":   order,
	})
}

// AddOpinion handles POST /orders/:id/opinions.
func (h *OrderHandler) AddOpinion(c echo.Context) error {
	if err := validation.Role(actingRole(c), "customer"); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	orderID, err := pathID(c)
	if err != nil {
		return err
	}
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest,
			"posting an opinion requires the rating field, and optionally content")
	}
	if err := validation.Fields([]string{"rating", "content"}, body, "PATCH"); err != nil {
		return badRequest(err)
	}
	if err := validation.Number(body["rating"], "rating", true); err != nil {
		return badRequest(err)
	}
	content := ""
	if raw, present := body["content"]; present {
		if err := validation.String(raw, "content", 0); err != nil {
			return badRequest(err)
		}
		content = raw.(string)
	}
	rating := int(body["rating"].(float64))

	opinion, err := h.Svc.AddOpinion(c.Request().Context(), orderID, actingCustomerID(c), rating, content)
	if err != nil {
		return serviceError(c, err)
	}

	h.publish(c, map[string]any{
		"type":    "opinion_added",
		"orderID": orderID,
		"rating":  rating,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "opinion has been created",
		"opinion": opinion,
	})
}

// GetOrders handles GET /orders, role-scoped.
func (h *OrderHandler) GetOrders(c echo.Context) error {
	role := actingRole(c)
	orders, err := h.Svc.ListOrders(c.Request().Context(), role, actingCustomerID(c))
	if err != nil {
		return serviceError(c, err)
	}
	if role == "customer" && len(orders) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "you don't have any orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /orders/status/:id.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	orderID, err := pathID(c)
	if err != nil {
		return err
	}
	detail, err := h.Svc.GetOrder(c.Request().Context(), orderID, actingRole(c), actingCustomerID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// GetOpinion handles GET /orders/:id/opinions.
func (h *OrderHandler) GetOpinion(c echo.Context) error {
	orderID, err := pathID(c)
	if err != nil {
		return err
	}
	opinion, err := h.Svc.GetOpinion(c.Request().Context(), orderID, actingRole(c), actingCustomerID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, opinion)
}

// GetStatuses handles GET /statuses.
func (h *OrderHandler) GetStatuses(c echo.Context) error {
	return c.JSON(http.StatusOK, models.AllStatuses)
}

func toItemInputs(raw []any) []service.ItemInput {
	items := make([]service.ItemInput, 0, len(raw))
	for _, r := range raw {
		m := r.(map[string]any)
		in := service.ItemInput{
			ProductID: uint(m["productId"].(float64)),
			Quantity:  uint(m["quantity"].(float64)),
			UnitPrice: m["unitPrice"].(float64),
		}
		if v, ok := m["vat"].(float64); ok {
			in.VAT = v
		}
		if d, ok := m["discount"].(float64); ok {
			in.Discount = d
		}
		items = append(items, in)
	}
	return items
}
