package donate

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/scavenger/client"
	"github.com/brojonat/scavenger/service/metrics"
)

// DonateClient is the transport the dispatcher needs. The campaign API
// client satisfies it; tests substitute a mock.
type DonateClient interface {
	Donate(ctx context.Context, destination, original, signature string) (*client.DonationOutcome, error)
}

// Summary reports the totals of one dispatch run. It is operator output
// only: the process exit code does not depend on it.
type Summary struct {
	Dispatched int `json:"dispatched"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}

// ProgressFunc is called after each donation attempt. outcome is nil when
// err is non-nil (transport failure).
type ProgressFunc func(i int, pair Pair, outcome *client.DonationOutcome, err error)

// Dispatcher sends donations sequentially, one request in flight at a time,
// in input order. Neither a transport error nor any HTTP status aborts the
// loop; each outcome is logged and counted.
type Dispatcher struct {
	client   DonateClient
	metrics  *metrics.Metrics
	logger   *slog.Logger
	throttle time.Duration
	progress ProgressFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithThrottle inserts a politeness delay between consecutive requests.
func WithThrottle(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.throttle = d }
}

// WithProgress registers a callback invoked after every donation attempt.
func WithProgress(fn ProgressFunc) Option {
	return func(dp *Dispatcher) { dp.progress = fn }
}

// NewDispatcher creates a new Dispatcher. If metrics is nil, no metrics
// will be recorded.
func NewDispatcher(client DonateClient, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		client:  client,
		metrics: m,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run dispatches one donation per pair, in input order. A context
// cancellation stops the loop early; pairs not yet attempted are not
// dispatched. Every other failure is swallowed and counted.
func (d *Dispatcher) Run(ctx context.Context, destination string, pairs []Pair) Summary {
	var summary Summary

	for i, pair := range pairs {
		if i > 0 && d.throttle > 0 {
			select {
			case <-ctx.Done():
				return summary
			case <-time.After(d.throttle):
			}
		}
		if ctx.Err() != nil {
			return summary
		}

		start := time.Now()
		outcome, err := d.client.Donate(ctx, destination, pair.Original, pair.Signature)
		elapsed := time.Since(start).Seconds()
		summary.Dispatched++

		if err != nil {
			summary.Failed++
			if d.metrics != nil {
				d.metrics.RecordDonationDispatched("transport_error", elapsed)
			}
			d.logger.Warn("donation request failed",
				"original", pair.Original,
				"destination", destination,
				"error", err,
			)
			// Context cancellation surfaces as a transport error; stop
			// before attempting further pairs.
			if ctx.Err() != nil {
				if d.progress != nil {
					d.progress(i, pair, nil, err)
				}
				return summary
			}
		} else {
			if outcome.StatusCode >= 200 && outcome.StatusCode < 300 {
				summary.Delivered++
			} else {
				summary.Failed++
			}
			if d.metrics != nil {
				d.metrics.RecordDonationDispatched(metrics.StatusClass(outcome.StatusCode), elapsed)
			}
			d.logger.Info("donation dispatched",
				"original", pair.Original,
				"destination", destination,
				"status", outcome.StatusCode,
			)
		}

		if d.progress != nil {
			d.progress(i, pair, outcome, err)
		}
	}

	return summary
}
