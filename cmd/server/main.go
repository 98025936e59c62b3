package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bantay-backend/internal/config"
	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	"bantay-backend/internal/services"
	"bantay-backend/pkg/database"
	"bantay-backend/pkg/logger"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bantay",
		Short:         "BantayBarangay Malagutay alert and rescue backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, realtime hub and background workers",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "ensure-indexes",
			Short: "Create MongoDB indexes and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runEnsureIndexes(cmd.Context())
			},
		},
		newCreateAdminCommand(),
	)
	return root
}

// bootstrap loads configuration and builds the logger every subcommand needs.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Start()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

func runEnsureIndexes(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Disconnect(context.Background(), db.Client()) }()

	return database.EnsureIndexes(ctx, db, log)
}

func newCreateAdminCommand() *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Connect(ctx, cfg.Mongo, log)
			if err != nil {
				return err
			}
			defer func() { _ = database.Disconnect(context.Background(), db.Client()) }()

			if err := database.EnsureIndexes(ctx, db, log); err != nil {
				return err
			}

			users := services.NewUserService(repository.NewUserRepository(db), log)
			admin, err := users.CreateAdmin(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Username, admin.ID.Hex())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Username, "username", "admin", "login username")
	flags.StringVar(&req.Email, "email", "", "admin email address")
	flags.StringVar(&req.Password, "password", "", "initial password")
	flags.StringVar(&req.FirstName, "first-name", "Barangay", "first name")
	flags.StringVar(&req.LastName, "last-name", "Administrator", "last name")
	flags.StringVar(&req.ContactNumber, "phone", "", "PH mobile number, e.g. 09171234567")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}
