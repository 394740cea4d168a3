package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/scavenger/client"
	"github.com/brojonat/scavenger/service/db"
	"github.com/brojonat/scavenger/service/hunt"
	"github.com/brojonat/scavenger/service/metrics"
	"github.com/brojonat/scavenger/service/solver"
	"github.com/urfave/cli/v2"
)

func huntFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "hunt-file",
		Value:   "challenges.json",
		Usage:   "Path to the hunt database file",
		EnvVars: []string{"SCAVENGER_HUNT_FILE"},
	}
}

func huntServerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Value:   client.DefaultHuntBaseURL,
		Usage:   "Campaign API base URL",
		EnvVars: []string{"SCAVENGER_HUNT_SERVER_URL"},
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output in JSON format",
	}
}

func importReceiptsCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Merge registration receipt files into the hunt database",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			huntFileFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("at least one receipt file is required")
			}

			logger := setupLogger(c.String("log-level"))
			store := db.NewStore(c.String("hunt-file"), logger)
			o := hunt.NewOrchestrator(store, nil, nil, nil, logger)

			result, err := o.ImportReceipts(c.Context, c.Args().Slice())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(result)
			}
			fmt.Printf("imported %d file(s), skipped %d, added %d challenge(s)\n",
				result.FilesImported, result.FilesSkipped, result.ChallengesAdded)
			for _, address := range result.Addresses {
				fmt.Printf("  %s\n", address)
			}
			return nil
		},
	}
}

func fetchChallengesCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch new challenges for every known address",
		Flags: []cli.Flag{
			huntFileFlag(),
			huntServerFlag(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   30 * time.Second,
				Usage:   "Per-request HTTP timeout",
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			store := db.NewStore(c.String("hunt-file"), logger)
			httpClient := &http.Client{Timeout: c.Duration("timeout")}
			api := client.NewClient(c.String("server"), httpClient, logger)
			o := hunt.NewOrchestrator(store, api, nil, nil, logger)

			result, err := o.FetchChallenges(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(result)
			}
			fmt.Printf("fetched %d new challenge(s), %d duplicate(s), %d error(s)\n",
				result.New, result.Duplicate, result.Errors)
			return nil
		},
	}
}

func solveChallengesCommand() *cli.Command {
	return &cli.Command{
		Name:  "solve",
		Usage: "Solve every available challenge and submit the solutions",
		Flags: []cli.Flag{
			huntFileFlag(),
			huntServerFlag(),
			&cli.StringFlag{
				Name:    "solver-path",
				Value:   solver.DefaultBinary,
				Usage:   "Path to the solver binary",
				EnvVars: []string{"SCAVENGER_SOLVER_PATH"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   30 * time.Second,
				Usage:   "Per-request HTTP timeout",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address for the duration of the run",
				EnvVars: []string{"METRICS_ADDR"},
			},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			store := db.NewStore(c.String("hunt-file"), logger)
			httpClient := &http.Client{Timeout: c.Duration("timeout")}
			api := client.NewClient(c.String("server"), httpClient, logger)
			runner := solver.NewExecRunner(c.String("solver-path"), logger)

			var m *metrics.Metrics
			if addr := c.String("metrics-addr"); addr != "" {
				m = metrics.NewMetrics(nil)
				shutdown := startMetricsServer(addr, logger)
				defer shutdown()
			}

			o := hunt.NewOrchestrator(store, api, runner, m, logger)
			result, err := o.SolveChallenges(c.Context)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(result)
			}
			fmt.Printf("solved %d, expired %d, failed %d\n",
				result.Solved, result.Expired, result.Failed)
			return nil
		},
	}
}

func listChallengesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the hunt database contents",
		Flags: []cli.Flag{
			huntFileFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			store := db.NewStore(c.String("hunt-file"), logger)

			huntDB, err := store.Load()
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(huntDB)
			}
			if len(huntDB) == 0 {
				fmt.Println("hunt database is empty")
				return nil
			}
			for _, address := range huntDB.Addresses() {
				entry := huntDB[address]
				fmt.Printf("%s (%d challenge(s))\n", address, len(entry.ChallengeQueue))
				for _, challenge := range entry.ChallengeQueue {
					line := fmt.Sprintf("  %-12s %-9s deadline=%s", challenge.ID, challenge.Status, challenge.LatestSubmission)
					if challenge.Status == db.StatusSolved {
						line += fmt.Sprintf(" solved_at=%s", challenge.SolvedAt)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
