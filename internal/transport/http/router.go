package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_app/internal/handlers"
	"github.com/Skotchmaster/order_app/internal/service"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	OrderHandler   *handlers.OrderHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	Tokens         *service.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/refresh", d.AuthHandler.Refresh)

	e.GET("/products", d.ProductHandler.GetProducts)
	e.GET("/products/:id", d.ProductHandler.GetProduct)
	e.GET("/categories", d.ProductHandler.GetCategories)
	e.GET("/statuses", d.OrderHandler.GetStatuses)
	if d.SearchHandler != nil {
		e.GET("/search", d.SearchHandler.Search)
	}

	auth := e.Group("", d.Tokens.RequireAuth)

	auth.GET("/profile", d.AuthHandler.Profile)

	auth.GET("/orders", d.OrderHandler.GetOrders)
	auth.GET("/orders/status/:id", d.OrderHandler.GetOrder)
	auth.POST("/orders", d.OrderHandler.CreateOrder)
	auth.PATCH("/orders/:id", d.OrderHandler.ChangeStatus)
	auth.POST("/orders/:id/opinions", d.OrderHandler.AddOpinion)
	auth.GET("/orders/:id/opinions", d.OrderHandler.GetOpinion)

	auth.POST("/products", d.ProductHandler.CreateProduct)
	auth.PATCH("/products/:id", d.ProductHandler.PatchProduct)
}
