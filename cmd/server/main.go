package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/order_app/internal/config"
	"github.com/Skotchmaster/order_app/internal/es"
	"github.com/Skotchmaster/order_app/internal/handlers"
	"github.com/Skotchmaster/order_app/internal/httperr"
	"github.com/Skotchmaster/order_app/internal/logging"
	"github.com/Skotchmaster/order_app/internal/mykafka"
	"github.com/Skotchmaster/order_app/internal/repo"
	"github.com/Skotchmaster/order_app/internal/service"
	httpserver "github.com/Skotchmaster/order_app/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	brokers := []string{configuration.KAFKA_ADDRESS}
	topics := []string{"user_events", "order_events", "product_events"}
	prod, err := mykafka.NewProducer(brokers, topics)
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	store := repo.New(db)
	tokens := &service.TokenService{Repo: store, JWTSecret: []byte(configuration.JWT_SECRET)}
	orders := &service.OrderService{Repo: store}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.Handler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logging.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{Tokens: tokens, Repo: store, Producer: prod},
		OrderHandler:   &handlers.OrderHandler{Svc: orders, Store: store, Producer: prod},
		ProductHandler: &handlers.ProductHandler{Repo: store, Producer: prod, ES: esClient, Index: "product"},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "product"},
		Tokens:         tokens,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
