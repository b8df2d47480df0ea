package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-inventory/internal/app"
	"github.com/odyssey-erp/odyssey-inventory/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-inventory/internal/audit/http"
	"github.com/odyssey-erp/odyssey-inventory/internal/auth"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/categories"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/products"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/references"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/suppliers"
	"github.com/odyssey-erp/odyssey-inventory/internal/observability"
	"github.com/odyssey-erp/odyssey-inventory/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("inventory stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, db.PoolConfig{
		DSN:      cfg.PGDSN,
		MaxConns: cfg.PGMaxConns,
		MinConns: cfg.PGMinConns,
	})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	authority, err := auth.NewAuthority(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	productService := products.NewService(
		products.NewRepository(dbpool),
		references.NewValidator(logger),
		audit.NewLogger(),
		metrics,
		products.ServiceConfig{TxTimeout: cfg.DBTxTimeout, Logger: logger},
	)
	categoryService := categories.NewService(categories.NewRepository(dbpool))
	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool))
	auditService := audit.NewService(audit.NewStore(dbpool))

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authority:       authority,
		Health:          dbpool,
		Metrics:         metrics,
		ProductHandler:  products.NewHandler(logger, productService),
		CategoryHandler: categories.NewHandler(logger, categoryService),
		SupplierHandler: suppliers.NewHandler(logger, supplierService),
		AuditHandler:    audithttp.NewHandler(logger, auditService, audit.NewExporter()),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.AppShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
