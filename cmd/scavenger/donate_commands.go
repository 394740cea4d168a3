package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/brojonat/scavenger/client"
	"github.com/brojonat/scavenger/service/donate"
	"github.com/brojonat/scavenger/service/metrics"
	"github.com/itchyny/gojq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func donateCommand() *cli.Command {
	return &cli.Command{
		Name:  "donate",
		Usage: "Donate wallet allocations to a destination address",
		Description: `Loads (original_address, signature) pairs from a JSON file and POSTs one
donation per pair to the campaign donate endpoint, sequentially, in input
order. Individual request failures are logged and counted but never abort
the run.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"f"},
				Value:   "data.json",
				Usage:   "Path to the JSON file of [original_address, signature] pairs",
				EnvVars: []string{"SCAVENGER_PAIRS_FILE"},
			},
			&cli.StringFlag{
				Name:    "destination",
				Aliases: []string{"d"},
				Usage:   "Destination address that receives all donations (required)",
				EnvVars: []string{"SCAVENGER_DESTINATION_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   client.DefaultDonateBaseURL,
				Usage:   "Donate endpoint base URL",
				EnvVars: []string{"SCAVENGER_SERVER_URL"},
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression that emits [original_address, signature] pairs from the input document",
			},
			&cli.DurationFlag{
				Name:  "throttle",
				Usage: "Delay between consecutive requests",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   30 * time.Second,
				Usage:   "Per-request HTTP timeout",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the would-be donation URLs without dispatching anything",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address for the duration of the run",
				EnvVars: []string{"METRICS_ADDR"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output the run summary as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			destination := c.String("destination")
			if destination == "" {
				return fmt.Errorf("destination address is required (--destination or SCAVENGER_DESTINATION_ADDRESS)")
			}

			logger := setupLogger(c.String("log-level"))

			pairs, err := loadDonationPairs(c.String("input"), c.String("jq"))
			if err != nil {
				return err
			}

			jsonOutput := c.Bool("json")
			serverURL := c.String("server")

			if c.Bool("dry-run") {
				for _, pair := range pairs {
					fmt.Printf("%s/donate_to/%s/%s/%s\n", serverURL, destination, pair.Original, pair.Signature)
				}
				return nil
			}

			var m *metrics.Metrics
			if addr := c.String("metrics-addr"); addr != "" {
				m = metrics.NewMetrics(nil)
				shutdown := startMetricsServer(addr, logger)
				defer shutdown()
			}
			if m != nil {
				m.RecordPairsLoaded(len(pairs))
			}

			httpClient := &http.Client{Timeout: c.Duration("timeout")}
			cl := client.NewClient(serverURL, httpClient, logger)

			opts := []donate.Option{donate.WithThrottle(c.Duration("throttle"))}
			if !jsonOutput {
				opts = append(opts, donate.WithProgress(func(i int, pair donate.Pair, outcome *client.DonationOutcome, err error) {
					if err != nil {
						fmt.Printf("%s: %v\n", pair.Original, err)
					} else {
						fmt.Printf("%s: HTTP %d\n", pair.Original, outcome.StatusCode)
					}
					fmt.Println()
				}))
			}

			dispatcher := donate.NewDispatcher(cl, m, logger, opts...)
			summary := dispatcher.Run(c.Context, destination, pairs)

			if jsonOutput {
				data, err := json.MarshalIndent(summary, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal summary: %w", err)
				}
				fmt.Println(string(data))
			} else {
				fmt.Printf("dispatched %d, delivered %d, failed %d\n",
					summary.Dispatched, summary.Delivered, summary.Failed)
			}
			return nil
		},
	}
}

// loadDonationPairs loads pairs from path. With a jq expression the file can
// be any JSON document; the expression must emit one 2-element string array
// per pair. Without one the file itself must be an array of such pairs.
func loadDonationPairs(path, jqExpr string) ([]donate.Pair, error) {
	if jqExpr == "" {
		return donate.LoadPairs(path)
	}

	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression %q: %w", jqExpr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression %q: %w", jqExpr, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", donate.ErrLoad, path, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", donate.ErrLoad, path, err)
	}
	return donate.ExtractPairs(doc, code)
}

// startMetricsServer serves Prometheus metrics for the duration of a
// command. The returned func shuts the server down.
func startMetricsServer(addr string, logger *slog.Logger) func() {
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
