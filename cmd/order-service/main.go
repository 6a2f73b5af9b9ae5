package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/food-order-service/internal/config"
	"github.com/vasiliy-maslov/food-order-service/internal/db"
	"github.com/vasiliy-maslov/food-order-service/internal/downstream"
	"github.com/vasiliy-maslov/food-order-service/internal/handler"
	"github.com/vasiliy-maslov/food-order-service/internal/httpclient"
	"github.com/vasiliy-maslov/food-order-service/internal/idempotency"
	"github.com/vasiliy-maslov/food-order-service/internal/metrics"
	"github.com/vasiliy-maslov/food-order-service/internal/order"
	"github.com/vasiliy-maslov/food-order-service/internal/transport"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Order service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	client := httpclient.New(httpclient.Config{
		Timeout:         cfg.HTTP.Timeout,
		Retries:         cfg.HTTP.Retries,
		CircuitFailures: cfg.HTTP.CircuitFailures,
		CircuitReset:    cfg.HTTP.CircuitReset,
	})

	registry := metrics.NewRegistry()

	svc := order.NewService(order.Deps{
		Repo:        order.NewRepository(dbConn.Pool),
		Ledger:      idempotency.NewPostgresLedger(dbConn.Pool),
		Menu:        downstream.NewMenuService(cfg.Services.Menu, client),
		Customers:   downstream.NewCustomerService(cfg.Services.Customer, client),
		Payments:    downstream.NewPaymentService(cfg.Services.Payment, client),
		Deliveries:  downstream.NewDeliveryService(cfg.Services.Delivery, client),
		Metrics:     registry,
		DeliveryFee: cfg.Order.DeliveryFee,
	})

	router := transport.NewRouter(handler.NewOrderHandler(svc), registry.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
