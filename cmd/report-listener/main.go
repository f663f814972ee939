package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tradeconv/internal/config"
	"tradeconv/internal/listener"
	"tradeconv/internal/logger"
	"tradeconv/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		Output:     os.Stderr,
		JSON:       cfg.LogJSON,
		TimeFormat: "2006-01-02 15:04:05",
	})

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
