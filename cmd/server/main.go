// Package main is the entry point for the Groceries API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/groceries-api/internal/config"
	"github.com/vyrodovalexey/groceries-api/internal/handler"
	"github.com/vyrodovalexey/groceries-api/internal/server"
	"github.com/vyrodovalexey/groceries-api/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the server.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "groceries",
		Short: "Groceries API server",
		Long: `Groceries serves a grocery list over HTTP. Items are kept in
sqlite, badger, redis or memory depending on the storage driver.`,
		SilenceUsage: true,
		RunE:         serve,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a YAML config file")
	flags.String("host", config.DefaultServerHost, "address to listen on")
	flags.Int("port", config.DefaultServerPort, "port to listen on")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("storage-driver", config.DefaultStorageDriver, "storage driver (sqlite, badger, redis, memory)")
	flags.String("storage-path", config.DefaultStoragePath, "sqlite database file or badger directory")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  serve,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "groceries v%s\n", handler.Version)
		},
	})

	return rootCmd
}

// serve loads configuration, opens the store and runs the server until a
// shutdown signal arrives.
func serve(cmd *cobra.Command, _ []string) error {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.String("address", cfg.Address()),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("storage_driver", cfg.StorageDriver),
	)

	itemStore, err := newStore(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer func() {
		if err := itemStore.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()

	return run(server.New(cfg, logger, itemStore), cfg, logger)
}

// run starts srv and blocks until it fails or a shutdown signal is received.
func run(srv *server.Server, cfg *config.Config, logger *zap.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

// newStore opens the store selected by cfg.StorageDriver.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.StoragePath, logger)
	case config.DriverBadger:
		return store.NewBadgerStore(cfg.StoragePath, logger)
	case config.DriverRedis:
		return store.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
