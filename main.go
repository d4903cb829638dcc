package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/dynamed-api/config"
	"github.com/giygas/dynamed-api/data"
	"github.com/giygas/dynamed-api/handlers"
	"github.com/giygas/dynamed-api/health"
	"github.com/giygas/dynamed-api/importer"
	"github.com/giygas/dynamed-api/logging"
	"github.com/giygas/dynamed-api/scheduler"
	"github.com/giygas/dynamed-api/server"
	"github.com/giygas/dynamed-api/validation"
)

// loadEnv reads .env from the working directory, then from the directory of the executable
func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}

	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	exPath := filepath.Dir(ex)
	if err := os.Chdir(exPath); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		logging.Error("Fatal error", "error", err)
		_ = logging.Close()
		os.Exit(1)
	}
}

func run() error {
	if err := loadEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.InitLogger(logging.OptionsFromConfig(cfg)); err != nil {
		logging.Warn("Logging to the console only", "error", err)
	}
	defer func() { _ = logging.Close() }()

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	validator := validation.NewDataValidatorWithLimit(cfg.MaxIDsPerField)
	loader := importer.New(importer.Options{
		DataDir: cfg.DataDir,
		BaseURL: cfg.CatalogBaseURL,
	})

	sched := scheduler.NewScheduler(dataContainer, loader, validator, cfg.RefreshTimes())
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	healthChecker := health.NewHealthChecker(dataContainer, cfg.RefreshTimes())
	httpHandler := handlers.NewHTTPHandler(dataContainer, validator, healthChecker, cfg.MaxRequestBody, cfg.MaxIDsPerField)

	srv, err := server.NewServer(cfg, httpHandler)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
