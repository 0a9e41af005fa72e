package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fintova/paycore/internal/api"
	"github.com/fintova/paycore/internal/config"
	"github.com/fintova/paycore/internal/idempotency"
	"github.com/fintova/paycore/internal/identity"
	"github.com/fintova/paycore/internal/ledger"
	"github.com/fintova/paycore/internal/processor"
	"github.com/fintova/paycore/internal/service"
)

func newStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (idempotency.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		store, err := idempotency.NewPostgresStore(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendDynamoDB:
		store, err := idempotency.NewDynamoStore(ctx, idempotency.DynamoConfig{
			Region:    cfg.AWSRegion,
			TableName: cfg.DynamoTable,
			Endpoint:  cfg.DynamoEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		log.Warn("using in-memory idempotency store; records do not survive restarts")
		return idempotency.NewMemoryStore(), func() {}, nil
	}
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize idempotency store", "backend", string(cfg.StoreBackend), "error", err)
		os.Exit(1)
	}
	defer closeStore()

	ledgerClient := ledger.NewHTTPClient(ledger.HTTPConfig{URL: cfg.LedgerURL})
	directory := identity.NewHTTPDirectory(identity.HTTPConfig{URL: cfg.IdentityURL})
	processorClient := processor.NewClient(processor.Config{URL: cfg.ProcessorURL, APIKey: cfg.ProcessorAPIKey})

	executor := service.NewExecutor(store, ledgerClient, directory, processorClient, log)
	engine := service.NewEngine(ledgerClient, directory, log)
	handler := api.NewHandler(executor, engine, cfg.WebhookSecret, log)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/transfers", handler.CreateTransferHandler).Methods("POST")
	apiV1.HandleFunc("/payouts", handler.CreatePayoutHandler).Methods("POST")
	apiV1.HandleFunc("/webhooks/processor", handler.WebhookHandler).Methods("POST")

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", "port", cfg.Port, "environment", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	log.Info("shutting down, draining in-flight requests")

	// In-flight money movements get a bounded window to finish; their
	// idempotency records cover anything cut off.
	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		log.Error("shutdown did not complete cleanly", "error", err)
	}
}
