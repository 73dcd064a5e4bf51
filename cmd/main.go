package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/exfarm/internal/shared"
	"github.com/urfave/cli/v3"
)

// newApp builds the root command with runner's subcommands.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "exfarm",
		Usage:   "Automate paid micro-tasks across freelance marketplaces",
		Version: "0.5.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Commands: runner.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	shared.SetLogLevel(logger, shared.ParseLogLevel(os.Getenv("LOG_LEVEL")))

	runner := NewRunner(RunnerOpts{Logger: logger})
	app := newApp(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted")
			os.Exit(130)
		}
		logger.Fatalf("application error: %v", err)
	}
}
