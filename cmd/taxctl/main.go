package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/odyssey-tax/cmd/taxctl/cli"
	"github.com/odyssey-erp/odyssey-tax/internal/app"
	"github.com/odyssey-erp/odyssey-tax/internal/catalog"
	"github.com/odyssey-erp/odyssey-tax/internal/platform/cache"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		slog.Default().Warn("redis unavailable, cache commands disabled", slog.Any("error", err))
	} else {
		jobsCLI.WithCache(catalog.NewInvalidator(redisClient))
	}

	code := jobsCLI.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err := jobsCLI.Close(); err != nil {
		slog.Default().Warn("close jobs cli", slog.Any("error", err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	stop()
	os.Exit(code)
}
