package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pohlai88/ledgercore/internal/accounts"
	"github.com/pohlai88/ledgercore/internal/app"
	"github.com/pohlai88/ledgercore/internal/bills"
	"github.com/pohlai88/ledgercore/internal/idempotency"
	"github.com/pohlai88/ledgercore/internal/invoices"
	"github.com/pohlai88/ledgercore/internal/journals"
	"github.com/pohlai88/ledgercore/internal/payments"
	"github.com/pohlai88/ledgercore/internal/platform/cache"
	"github.com/pohlai88/ledgercore/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, read cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()
	readCache := cache.NewReadCache(redisClient, "ledgercore", cfg.CacheTTL)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, readCache, logger)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, accountsService, logger)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, accountsService, readCache, logger)

	billsRepo := bills.NewRepository(pool)
	billsService := bills.NewService(billsRepo, accountsService, logger)

	idempotencyStore := idempotency.NewStore(pool, cfg.IdempotencyTTL)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo,
		payments.NewInvoiceLedger(invoicesService),
		payments.NewBillLedger(billsService),
		logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Pool:            pool,
		AccountsHandler: accounts.NewHandler(logger, accountsService),
		JournalsHandler: journals.NewHandler(logger, journalsService),
		InvoicesHandler: invoices.NewHandler(logger, invoicesService),
		BillsHandler:    bills.NewHandler(logger, billsService),
		PaymentsHandler: payments.NewHandler(logger, paymentsService),
		RequestsHandler: idempotency.NewHandler(logger, idempotencyStore),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
