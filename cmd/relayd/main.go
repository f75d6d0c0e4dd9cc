package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stashgrid/relay/internal/journal"
	"github.com/stashgrid/relay/internal/logger"
	"github.com/stashgrid/relay/internal/relay"
)

func main() {
	log := logger.NewLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	var j *journal.Journal
	if path := os.Getenv("RELAY_JOURNAL"); path != "" {
		var err error
		j, err = journal.Open(path)
		if err != nil {
			log.Error("Opening journal failed", "path", path, "error", err)
			os.Exit(1)
		}
		defer func() { _ = j.Close() }()
		log.Info("Journaling transfers", "path", path)
	}

	srv, err := relay.NewServer(relay.Config{
		Addr:    ":" + port,
		Logger:  log,
		Journal: j,
	})
	if err != nil {
		log.Error("Starting relay failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		log.Error("Relay server failed", "error", err)
		os.Exit(1)
	}
}
