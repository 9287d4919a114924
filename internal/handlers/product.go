package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_app/internal/logging"
	"github.com/Skotchmaster/order_app/internal/models"
	"github.com/Skotchmaster/order_app/internal/mykafka"
	"github.com/Skotchmaster/order_app/internal/repo"
	"github.com/Skotchmaster/order_app/internal/service/search"
	"github.com/Skotchmaster/order_app/internal/util"
	"github.com/Skotchmaster/order_app/internal/validation"
)

type ProductHandler struct {
	Repo     *repo.GormRepo
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

func (h *ProductHandler) index(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexProduct(ctx, h.ES, h.Index, p); err != nil {
		logging.FromContext(c.Request().Context()).Error("product index failed", "product_id", p.ID, "error", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// GetProducts handles GET /products with pagination.
func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, products, err := h.Repo.ListProducts(c.Request().Context(), offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}

// GetProduct handles GET /products/:id.
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	product, err := h.Repo.FindProduct(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("a product with id %d does not exist", id))
	}
	return c.JSON(http.StatusOK, product)
}

var productFields = []string{"name", "description", "price", "weight", "categoryId"}

// CreateProduct handles POST /products, worker only.
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	if err := validation.Role(actingRole(c), "worker"); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if err := validation.Fields(productFields, body, "POST"); err != nil {
		return badRequest(err)
	}
	ctx := c.Request().Context()
	if err := h.validateProductFields(ctx, body); err != nil {
		return badRequest(err)
	}

	product := &models.Product{
		Name:        body["name"].(string),
		Description: body["description"].(string),
		Price:       body["price"].(float64),
		Weight:      body["weight"].(float64),
		CategoryID:  uint(body["categoryId"].(float64)),
	}
	if err := h.Repo.CreateProduct(ctx, product); err != nil {
		return serviceError(c, err)
	}

	h.index(c, product)
	h.publish(c, map[string]any{"type": "product_created", "productID": product.ID})

	return c.JSON(http.StatusCreated, echo.Map{"message": "product created", "product": product})
}

// PatchProduct handles PATCH /products/:id, worker only. Only the supplied
// fields are validated and updated.
func (h *ProductHandler) PatchProduct(c echo.Context) error {
	if err := validation.Role(actingRole(c), "worker"); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	body, err := bindBody(c)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no valid fields to update")
	}
	if err := validation.Fields(productFields, body, "PATCH"); err != nil {
		return badRequest(err)
	}

	ctx := c.Request().Context()
	if exists, err := h.Repo.ProductExists(ctx, id); err != nil {
		return serviceError(c, err)
	} else if !exists {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("a product with id %d does not exist", id))
	}

	fields := map[string]any{}
	if v, present := body["name"]; present {
		if err := validation.String(v, "name", 100); err != nil {
			return badRequest(err)
		}
		fields["name"] = v
	}
	if v, present := body["description"]; present {
		if err := validation.String(v, "description", 0); err != nil {
			return badRequest(err)
		}
		fields["description"] = v
	}
	if v, present := body["price"]; present {
		if err := validation.Number(v, "price", false); err != nil {
			return badRequest(err)
		}
		fields["price"] = v
	}
	if v, present := body["weight"]; present {
		if err := validation.Number(v, "weight", false); err != nil {
			return badRequest(err)
		}
		fields["weight"] = v
	}
	if v, present := body["categoryId"]; present {
		if err := validation.ID(ctx, v, "category", h.Repo.CategoryExists); err != nil {
			return badRequest(err)
		}
		fields["category_id"] = uint(v.(float64))
	}

	product, err := h.Repo.UpdateProduct(ctx, id, fields)
	if err != nil {
		return serviceError(c, err)
	}

	h.index(c, product)
	h.publish(c, map[string]any{"type": "product_updated", "productID": product.ID})

	return c.JSON(http.StatusCreated, echo.Map{"message": "product updated", "product": product})
}

// GetCategories handles GET /categories.
func (h *ProductHandler) GetCategories(c echo.Context) error {
	categories, err := h.Repo.ListCategories(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *ProductHandler) validateProductFields(ctx context.Context, body map[string]any) error {
	if err := validation.String(body["name"], "name", 100); err != nil {
		return err
	}
	if err := validation.String(body["description"], "description", 0); err != nil {
		return err
	}
	if err := validation.Number(body["price"], "price", false); err != nil {
		return err
	}
	if err := validation.Number(body["weight"], "weight", false); err != nil {
		return err
	}
	return validation.ID(ctx, body["categoryId"], "category", h.Repo.CategoryExists)
}
