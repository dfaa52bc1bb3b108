package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"paytrack/internal/cli"
	apphttp "paytrack/internal/http"
	"paytrack/internal/session"
)

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig()

	repo := cli.InitSQLite(cfg.SQLiteDBPath)
	defer repo.Close()

	receiptStore := cli.InitReceiptStore(cfg.UploadDir)
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Store:          repo,
		Receipts:       receiptStore,
		Sessions:       sessions,
		AccessCode:     cfg.AccessCode,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		slog.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting paytrack server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped gracefully")
}
