package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-tax/internal/app"
	"github.com/odyssey-erp/odyssey-tax/internal/catalog"
	"github.com/odyssey-erp/odyssey-tax/internal/observability"
	"github.com/odyssey-erp/odyssey-tax/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tax/internal/platform/db"
	"github.com/odyssey-erp/odyssey-tax/internal/quote"
	quotehttp "github.com/odyssey-erp/odyssey-tax/internal/quote/http"
	"github.com/odyssey-erp/odyssey-tax/internal/taxsettings"
	"github.com/odyssey-erp/odyssey-tax/jobs"
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

	settings, err := taxsettings.Load()
	if err != nil {
		logger.Error("load tax settings", slog.Any("error", err))
		os.Exit(1)
	}
	settingsStore, err := taxsettings.NewStore(settings)
	if err != nil {
		logger.Error("init tax settings", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewCachedRepository(catalog.NewRepository(dbpool), redisClient, cfg.CatalogCacheTTL, logger)

	quoteRepo := quote.NewRepository(dbpool)
	quoteService := quote.NewService(catalogRepo, settingsStore,
		quote.WithSnapshotStore(quoteRepo),
		quote.WithRecorder(metrics),
		quote.WithResolver(cfg.Resolver()),
		quote.WithLogger(logger),
	)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		TaxHandler: quotehttp.NewHandler(logger, quoteService, jobClient, cfg.Locale()),
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    metrics,
	})

	go reloadSettingsOnHangup(ctx, settingsStore, logger)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
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

// reloadSettingsOnHangup re-reads TAX_SETTINGS_FILE on SIGHUP. Invalid
// values are logged and the active settings are kept.
func reloadSettingsOnHangup(ctx context.Context, store *taxsettings.Store, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := store.Reload()
			if err != nil {
				logger.Warn("reload tax settings", slog.Any("error", err))
				continue
			}
			logger.Info("tax settings reloaded",
				slog.Float64("default_rate", next.DefaultRate),
				slog.String("rounding", string(next.RoundingMethod)),
			)
		}
	}
}
