package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Best-effort .env loading; a missing file is fine.
	godotenv.Load()

	app := &cli.App{
		Name:  "scavenger",
		Usage: "Midnight Scavenger Mine campaign CLI",
		Description: `A command-line companion for the Midnight Scavenger Mine campaign.

Use this CLI to import registration receipts, fetch and solve proof-of-work
challenges, and donate wallet allocations to a destination address.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			donateCommand(),
			{
				Name:  "receipts",
				Usage: "Registration receipt commands",
				Subcommands: []*cli.Command{
					importReceiptsCommand(),
				},
			},
			{
				Name:  "challenges",
				Usage: "Challenge queue commands",
				Subcommands: []*cli.Command{
					fetchChallengesCommand(),
					solveChallengesCommand(),
					listChallengesCommand(),
				},
			},
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			fmt.Printf("scavenger %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

// setupLogger creates a structured logger with the given log level.
// Logs go to stderr so stdout stays parseable.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
