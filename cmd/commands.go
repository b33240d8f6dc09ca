package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thegupta1694/capstone/config"
	"github.com/thegupta1694/capstone/db"
	"github.com/thegupta1694/capstone/handlers"
	"github.com/thegupta1694/capstone/metrics"
	"github.com/thegupta1694/capstone/routes"
	"github.com/thegupta1694/capstone/services"
	"github.com/thegupta1694/capstone/storage"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate needs STORE_DRIVER=%s", config.StoreDriverPostgres)
			}
			sqlDB, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout, db.DefaultPool)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer sqlDB.Close()
			return db.Migrate(cmd.Context(), sqlDB, logger)
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var input services.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long:  "Create an administrator account. The password is read from --password or ADMIN_PASSWORD.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			if input.Password == "" {
				input.Password = os.Getenv("ADMIN_PASSWORD")
			}

			handle, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer handle.Close(logger)

			auth := services.NewAuthService(handle.store, cfg.BcryptCost, cfg.DefaultTotalSlots, logger)
			admin, err := auth.CreateAdmin(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			logger.Info("admin created", slog.Int("user_id", admin.ID), slog.String("username", admin.Username))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input.Username, "username", "", "university id used to log in")
	flags.StringVar(&input.Email, "email", "", "contact email")
	flags.StringVar(&input.Password, "password", "", "password (defaults to $ADMIN_PASSWORD)")
	flags.StringVar(&input.FirstName, "first-name", "", "first name")
	flags.StringVar(&input.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runServe(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.StoreDriver))

	handle, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer handle.Close(logger)
	store := handle.store

	// Логотипы команд хранятся в Cloudflare R2, если он настроен
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured; team logo uploads are disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	authService := services.NewAuthService(store, cfg.BcryptCost, cfg.DefaultTotalSlots, logger)
	userService := services.NewUserService(store, logger)
	directory := services.NewUserDirectoryService(store.Users())
	professorService := services.NewProfessorService(store, logger)
	roster := services.NewTeamRoster(store, uploader, logger)
	coordinator := services.NewAllocationCoordinator(store, logger)
	ledger := services.NewApplicationLedger(store, coordinator, uploader, logger)
	dashboardService := services.NewDashboardService(store)
	logger.Info("services initialized")

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService, userService, cfg.JWTSecretKey, cfg.JWTTTL),
		User:        handlers.NewUserHandler(userService, directory),
		Professor:   handlers.NewProfessorHandler(professorService),
		Team:        handlers.NewTeamHandler(roster),
		Application: handlers.NewApplicationHandler(ledger),
		Dashboard:   handlers.NewDashboardHandler(dashboardService),
	}, routes.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health:         handle.health,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
