package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scrumdeal/scrumdeal/internal/factory"
	"github.com/scrumdeal/scrumdeal/internal/server"
	redisstorage "github.com/scrumdeal/scrumdeal/internal/storage/redis"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func run(ctx context.Context, cfg *config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	factoryCfg := factory.Config{
		Logger:             logger,
		StorageType:        cfg.storageType,
		StalenessThreshold: cfg.staleAfter,
	}
	if cfg.storageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.redisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	router := server.NewRouter(server.RouterConfig{
		Logger:           logger,
		TableService:     app.TableService,
		DirectoryService: app.DirectoryService,
		HistoryService:   app.HistoryService,
		Transport:        app.Transport,
	})

	serverConfig := server.DefaultConfig()
	serverConfig.Host = cfg.bind
	serverConfig.Port = cfg.port
	srv := server.New(router, serverConfig, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("server started",
		slog.String("addr", srv.Addr()),
		slog.String("storage", cfg.storageType))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}
