package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/thegupta1694/capstone/config"
	"github.com/thegupta1694/capstone/db"
	"github.com/thegupta1694/capstone/repositories"
	"github.com/thegupta1694/capstone/repositories/memory"
)

const dbConnectTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "capstone",
		Short:         "Capstone project team and supervisor allocation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newCreateAdminCmd())
	return root
}

// bootstrap loads configuration and installs the JSON logger as default.
func bootstrap() (*config.Config, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return nil, nil, err
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

type storeHandle struct {
	store  repositories.Store
	sqlDB  *sql.DB
	health func(ctx context.Context) error
}

func (h *storeHandle) Close(logger *slog.Logger) {
	if h.sqlDB == nil {
		return
	}
	if err := h.sqlDB.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	logger.Info("database connection closed")
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storeHandle, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &storeHandle{store: memory.NewStore()}, nil
	case config.StoreDriverPostgres:
		sqlDB, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout, db.DefaultPool)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx, sqlDB, logger); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("database connection established")
		return &storeHandle{
			store:  repositories.NewPostgresStore(sqlDB, logger),
			sqlDB:  sqlDB,
			health: sqlDB.PingContext,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
