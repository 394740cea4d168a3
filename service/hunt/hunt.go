// Package hunt orchestrates the scavenger hunt campaign: importing
// registration receipts, fetching challenges, and solving them.
package hunt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/scavenger/client"
	"github.com/brojonat/scavenger/service/db"
	"github.com/brojonat/scavenger/service/metrics"
	"github.com/brojonat/scavenger/service/solver"
)

// solvedAtLayout matches the timestamps the earlier campaign tooling wrote:
// UTC, millisecond precision, Z suffix.
const solvedAtLayout = "2006-01-02T15:04:05.000Z"

// HuntStore defines the database operations needed by the orchestrator.
// This allows for easy mocking in tests.
type HuntStore interface {
	Load() (db.Hunt, error)
	Save(db.Hunt) error
}

// HuntAPI defines the campaign API operations needed by the orchestrator.
// This allows for easy mocking in tests.
type HuntAPI interface {
	FetchChallenge(ctx context.Context) (*client.Challenge, error)
	SubmitSolution(ctx context.Context, address, challengeID, nonce string) (*client.SolutionReceipt, error)
}

// ImportResult reports the outcome of a receipt import.
type ImportResult struct {
	FilesImported   int      `json:"files_imported"`
	FilesSkipped    int      `json:"files_skipped"`
	ChallengesAdded int      `json:"challenges_added"`
	Addresses       []string `json:"addresses"`
}

// FetchResult reports the outcome of a challenge fetch run.
type FetchResult struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// SolveResult reports the outcome of a solve run.
type SolveResult struct {
	Solved  int `json:"solved"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// Orchestrator runs the hunt workflows strictly sequentially. Following the
// explicit dependency injection pattern, all dependencies are passed in.
type Orchestrator struct {
	store   HuntStore
	api     HuntAPI
	runner  solver.Runner
	metrics *metrics.Metrics
	logger  *slog.Logger

	// now is swappable for deadline tests.
	now func() time.Time
}

// NewOrchestrator creates a new Orchestrator. If metrics is nil, no metrics
// will be recorded.
func NewOrchestrator(store HuntStore, api HuntAPI, runner solver.Runner, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Orchestrator{
		store:   store,
		api:     api,
		runner:  runner,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ImportReceipts merges registration receipt files into the hunt database.
// Unreadable or malformed files are logged and skipped; the database is
// saved once at the end.
func (o *Orchestrator) ImportReceipts(ctx context.Context, paths []string) (*ImportResult, error) {
	hunt, err := o.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load hunt database: %w", err)
	}

	result := &ImportResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			o.logger.Warn("skipping unreadable receipt file", "path", path, "error", err)
			result.FilesSkipped++
			continue
		}
		address, added, err := hunt.MergeReceipt(raw)
		if err != nil {
			o.logger.Warn("skipping malformed receipt file", "path", path, "error", err)
			result.FilesSkipped++
			continue
		}
		o.logger.Info("receipt imported", "path", path, "address", address, "challenges_added", added)
		result.FilesImported++
		result.ChallengesAdded += added
		result.Addresses = append(result.Addresses, address)
	}

	if err := o.store.Save(hunt); err != nil {
		return nil, fmt.Errorf("failed to save hunt database: %w", err)
	}
	return result, nil
}

// FetchChallenges requests one challenge from the campaign API for every
// known address and merges unseen ones into each address's queue.
// Per-address API errors are logged and skipped. An empty hunt database is
// an error: receipts must be imported first.
func (o *Orchestrator) FetchChallenges(ctx context.Context) (*FetchResult, error) {
	hunt, err := o.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load hunt database: %w", err)
	}
	if len(hunt) == 0 {
		return nil, fmt.Errorf("hunt database is empty; import registration receipts first")
	}

	result := &FetchResult{}
	for _, address := range hunt.Addresses() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		challenge, err := o.api.FetchChallenge(ctx)
		if err != nil {
			o.logger.Warn("failed to fetch challenge", "address", address, "error", err)
			result.Errors++
			if o.metrics != nil {
				o.metrics.RecordChallengeFetched("error")
			}
			continue
		}

		added := hunt.AddChallenge(address, db.Challenge{
			ID:               challenge.ChallengeID,
			Number:           challenge.ChallengeNumber,
			CampaignDay:      challenge.Day,
			Difficulty:       challenge.Difficulty,
			Status:           db.StatusAvailable,
			NoPreMine:        challenge.NoPreMine,
			NoPreMineHour:    challenge.NoPreMineHour,
			LatestSubmission: challenge.LatestSubmission,
			AvailableAt:      challenge.IssuedAt,
		})
		if added {
			o.logger.Info("new challenge fetched", "address", address, "challenge_id", challenge.ChallengeID)
			result.New++
			if o.metrics != nil {
				o.metrics.RecordChallengeFetched("new")
			}
		} else {
			o.logger.Debug("challenge already queued", "address", address, "challenge_id", challenge.ChallengeID)
			result.Duplicate++
			if o.metrics != nil {
				o.metrics.RecordChallengeFetched("duplicate")
			}
		}
	}

	if err := o.store.Save(hunt); err != nil {
		return nil, fmt.Errorf("failed to save hunt database: %w", err)
	}
	return result, nil
}

// SolveChallenges processes every available challenge: past-deadline ones
// are expired, the rest go through the solver and a solution submission.
// Solver or submission failure leaves a challenge available for the next
// run. The database is saved once at the end.
func (o *Orchestrator) SolveChallenges(ctx context.Context) (*SolveResult, error) {
	hunt, err := o.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load hunt database: %w", err)
	}
	if len(hunt) == 0 {
		return nil, fmt.Errorf("hunt database is empty; import registration receipts first")
	}

	result := &SolveResult{}
	now := o.now().UTC()
	for _, address := range hunt.Addresses() {
		queue := hunt[address].ChallengeQueue
		for i := range queue {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			challenge := &queue[i]
			if challenge.Status != db.StatusAvailable {
				continue
			}
			o.solveOne(ctx, address, challenge, now, result)
		}
	}

	if err := o.store.Save(hunt); err != nil {
		return nil, fmt.Errorf("failed to save hunt database: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) solveOne(ctx context.Context, address string, challenge *db.Challenge, now time.Time, result *SolveResult) {
	deadline, err := time.Parse(time.RFC3339, challenge.LatestSubmission)
	if err != nil {
		o.logger.Warn("challenge has unparseable submission deadline, skipping",
			"address", address,
			"challenge_id", challenge.ID,
			"latest_submission", challenge.LatestSubmission,
		)
		result.Failed++
		return
	}
	if now.After(deadline) {
		challenge.Status = db.StatusExpired
		o.logger.Info("challenge expired", "address", address, "challenge_id", challenge.ID)
		result.Expired++
		if o.metrics != nil {
			o.metrics.RecordChallengeExpired()
		}
		return
	}

	o.logger.Info("solving challenge", "address", address, "challenge_id", challenge.ID)
	start := o.now()
	nonce, err := o.runner.Solve(ctx, solver.SolveRequest{
		Address:          address,
		ChallengeID:      challenge.ID,
		Difficulty:       challenge.Difficulty,
		NoPreMine:        challenge.NoPreMine,
		LatestSubmission: challenge.LatestSubmission,
		NoPreMineHour:    challenge.NoPreMineHour,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		o.logger.Warn("solver failed", "address", address, "challenge_id", challenge.ID, "error", err)
		result.Failed++
		if o.metrics != nil {
			o.metrics.RecordSolverRun("error", elapsed)
		}
		return
	}
	if o.metrics != nil {
		o.metrics.RecordSolverRun("success", elapsed)
	}

	receipt, err := o.api.SubmitSolution(ctx, address, challenge.ID, nonce)
	if err != nil {
		o.logger.Warn("failed to submit solution", "address", address, "challenge_id", challenge.ID, "error", err)
		result.Failed++
		if o.metrics != nil {
			o.metrics.RecordSolutionSubmission("rejected")
		}
		return
	}

	challenge.Status = db.StatusSolved
	challenge.SolvedAt = o.now().UTC().Format(solvedAtLayout)
	challenge.Salt = nonce
	challenge.Hash = receipt.Hash
	result.Solved++
	if o.metrics != nil {
		o.metrics.RecordChallengeSolved()
		o.metrics.RecordSolutionSubmission("accepted")
	}
	o.logger.Info("challenge solved",
		"address", address,
		"challenge_id", challenge.ID,
		"hash", receipt.Hash,
	)
}
