package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"detectreview/internal/config"
	"detectreview/internal/logger"
	"detectreview/internal/route"
	"detectreview/internal/service/capture"
	"detectreview/internal/service/detector"
	"detectreview/internal/service/review"
	"detectreview/internal/service/reviewstore"
	"detectreview/internal/service/session"
	"detectreview/internal/service/storage"
	"detectreview/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	hubService *websocket.HubService
	machine    *session.Machine
	server     *http.Server
}

func NewApp(cfg *config.Config) *App {
	log := logger.NewLogger(cfg)

	oracle := detector.NewClient(cfg.OracleURL, cfg.RequestTimeout, log)
	store := reviewstore.NewClient(cfg.StoreURL, cfg.RequestTimeout, log)
	saver := storage.NewImageSaver(cfg, log)
	hub := websocket.NewHubService(log)

	machine := session.New(
		capture.Devices{CameraID: cfg.CameraDevice},
		oracle,
		review.NewProxy(store, log),
		saver.Save,
		hub,
		session.Options{Interval: cfg.FrameInterval, Logger: log},
	)

	return &App{
		config:     cfg,
		logger:     log,
		hubService: hub,
		machine:    machine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: route.SetupRoutes(machine, hub, cfg, log),
		},
	}
}

// Run serves the command API until ctx ends, then stops any acquisition,
// shuts the server down and closes the log files.
func (a *App) Run(ctx context.Context) (err error) {
	defer func() { err = multierr.Append(err, a.logger.Close()) }()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hubService.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Detection review server listening on :%d", a.config.Port)
		a.logger.Info("Oracle: %s, review store: %s, images: %s", a.config.OracleURL, a.config.StoreURL, a.config.SaveDirectory)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.machine.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
