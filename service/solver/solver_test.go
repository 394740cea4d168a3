package solver

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSolver writes a shell script to a temp dir and returns its path.
func fakeSolver(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake solver scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-solver")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestSolve_NonceIsTrimmedStdout(t *testing.T) {
	path := fakeSolver(t, `echo "  nonce-12345  "`)
	runner := NewExecRunner(path, nil)

	nonce, err := runner.Solve(context.Background(), SolveRequest{ChallengeID: "ch-001"})
	require.NoError(t, err)
	assert.Equal(t, "nonce-12345", nonce)
}

func TestSolve_FlagsPassedThrough(t *testing.T) {
	path := fakeSolver(t, `echo "$@"`)
	runner := NewExecRunner(path, nil)

	out, err := runner.Solve(context.Background(), SolveRequest{
		Address:          "addr1",
		ChallengeID:      "ch-001",
		Difficulty:       "0000ffff",
		NoPreMine:        "abc",
		LatestSubmission: "2026-01-02T15:04:05Z",
		NoPreMineHour:    "7",
	})
	require.NoError(t, err)
	assert.Equal(t, "--address addr1 --challenge-id ch-001 --difficulty 0000ffff --no-pre-mine abc --latest-submission 2026-01-02T15:04:05Z --no-pre-mine-hour 7", out)
}

func TestSolve_NonZeroExitCarriesStderr(t *testing.T) {
	path := fakeSolver(t, `echo "difficulty target unreachable" >&2; exit 1`)
	runner := NewExecRunner(path, nil)

	nonce, err := runner.Solve(context.Background(), SolveRequest{ChallengeID: "ch-001"})
	require.Error(t, err)
	assert.Empty(t, nonce)
	assert.Contains(t, err.Error(), "difficulty target unreachable")
}

func TestSolve_EmptyStdoutIsAnError(t *testing.T) {
	path := fakeSolver(t, `exit 0`)
	runner := NewExecRunner(path, nil)

	nonce, err := runner.Solve(context.Background(), SolveRequest{ChallengeID: "ch-001"})
	require.Error(t, err)
	assert.Empty(t, nonce)
}

func TestSolve_MissingBinary(t *testing.T) {
	runner := NewExecRunner(filepath.Join(t.TempDir(), "no-such-solver"), nil)

	nonce, err := runner.Solve(context.Background(), SolveRequest{ChallengeID: "ch-001"})
	require.Error(t, err)
	assert.Empty(t, nonce)
}
