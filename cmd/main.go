package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"watchvault/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "watchvault",
		Usage:    "Sync watch history from video, movie & gaming platforms into one vault",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrConcurrentSync) {
			logger.Warn("a sync is already running for that platform")
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
