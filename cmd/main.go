package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/shared"
)

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "autoshorts",
		Usage:   "Generate narrated short videos on a weekly schedule",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file holding API keys and ENCRYPTION_KEY",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "cron",
				Usage: "Run the scheduler tick for the current slot and exit",
			},
		},
		Before:   r.Before,
		Action:   r.Root,
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	err := newApp(runner).Run(context.Background(), os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "error", cerr)
	}

	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrConfig):
			logger.Fatal("configuration error", "error", err)
		default:
			runner.logger.Error("command failed", "error", err)
			os.Exit(1)
		}
	}
}
