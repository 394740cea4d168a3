// Package solver runs the external proof-of-work solver binary.
package solver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultBinary is the solver binary name, resolved via PATH.
const DefaultBinary = "ashmaize-solver"

// SolveRequest carries the challenge parameters passed to the solver.
type SolveRequest struct {
	Address          string
	ChallengeID      string
	Difficulty       string
	NoPreMine        string
	LatestSubmission string
	NoPreMineHour    string
}

// Runner produces a nonce for a challenge. ExecRunner is the real
// implementation; tests substitute a mock.
type Runner interface {
	Solve(ctx context.Context, req SolveRequest) (string, error)
}

// ExecRunner invokes the solver binary once per challenge. The nonce is the
// solver's trimmed stdout; a non-zero exit is an error carrying trimmed
// stderr.
type ExecRunner struct {
	path   string
	logger *slog.Logger
}

// NewExecRunner creates a runner for the solver binary at path. An empty
// path resolves DefaultBinary via PATH.
func NewExecRunner(path string, logger *slog.Logger) *ExecRunner {
	if path == "" {
		path = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &ExecRunner{path: path, logger: logger}
}

// Solve runs the solver and returns the nonce it prints.
func (r *ExecRunner) Solve(ctx context.Context, req SolveRequest) (string, error) {
	cmd := exec.CommandContext(ctx, r.path,
		"--address", req.Address,
		"--challenge-id", req.ChallengeID,
		"--difficulty", req.Difficulty,
		"--no-pre-mine", req.NoPreMine,
		"--latest-submission", req.LatestSubmission,
		"--no-pre-mine-hour", req.NoPreMineHour,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("solver failed: %s: %w", msg, err)
		}
		return "", fmt.Errorf("solver failed: %w", err)
	}

	nonce := strings.TrimSpace(stdout.String())
	if nonce == "" {
		return "", fmt.Errorf("solver produced no nonce")
	}

	r.logger.Debug("solver finished",
		"challenge_id", req.ChallengeID,
		"address", req.Address,
		"duration", elapsed,
	)
	return nonce, nil
}
