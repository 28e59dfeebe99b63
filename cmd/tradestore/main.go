package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guyvdb/tradestore/api"
	"github.com/guyvdb/tradestore/config"
	"github.com/guyvdb/tradestore/logging"
	"github.com/guyvdb/tradestore/repository"
)

func main() {
	if err := run(); err != nil {
		slog.Error("tradestore failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logging.Setup(os.Stderr, cfg.Logging())

	opts, err := cfg.RepositoryOptions()
	if err != nil {
		return err
	}

	// --- Repositories ---
	live, err := repository.OpenTrades(cfg.Live(), opts...)
	if err != nil {
		return fmt.Errorf("open live trades: %w", err)
	}
	defer live.Close()

	archive, err := repository.OpenArchive(cfg.Archive(), opts...)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	ledger, err := repository.OpenAccount(cfg.Live(), opts...)
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	defer ledger.Close()

	if orphans, err := live.CheckIndexes(); err != nil {
		slog.Warn("index check failed", "err", err)
	} else if len(orphans) > 0 {
		for _, o := range orphans {
			slog.Warn("index orphan", "orphan", o.String())
		}
	}

	archiver := func(ctx context.Context, id int64) error {
		return repository.Archive(ctx, live, archive, id)
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewServer(live, ledger, archiver).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("tradestore listening", "addr", cfg.Addr, "data", cfg.DataDir, "codec", cfg.Codec)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down tradestore")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	return nil
}
