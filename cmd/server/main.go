package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"detectreview/internal/app"
	"detectreview/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewApp(cfg).Run(ctx); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}
