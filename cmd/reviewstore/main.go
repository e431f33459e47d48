package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"detectreview/internal/config"
	"detectreview/internal/logger"
	"detectreview/internal/repository/sqlite"
	"detectreview/internal/route"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Review store stopped with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	logger := logger.NewLogger(cfg)
	defer func() { err = multierr.Append(err, logger.Close()) }()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StorePort),
		Handler: route.SetupStoreRoutes(sqlite.NewRecordRepository(db), logger),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Review store listening on :%d, database %s", cfg.StorePort, cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
