package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/donate_to/D1/addrA/sigA", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(body))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	outcome, err := client.Donate(context.Background(), "D1", "addrA", "sigA")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
}

func TestDonate_ServerErrorIsNotAClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	outcome, err := client.Donate(context.Background(), "D1", "addrA", "sigA")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, outcome.StatusCode)
}

func TestDonate_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(server.URL, nil, nil)
	outcome, err := client.Donate(context.Background(), "D1", "addrA", "sigA")
	require.Error(t, err)
	assert.Nil(t, outcome)
}

func TestDonate_PathValuesSubstitutedVerbatim(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Donate(context.Background(), "dest123", "mn_shield-addr_test1abc", "9f8e7d")
	require.NoError(t, err)
	assert.Equal(t, "/donate_to/dest123/mn_shield-addr_test1abc/9f8e7d", gotPath)
}

func TestFetchChallenge_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/challenge", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"challenge": map[string]interface{}{
				"challenge_id":      "ch-042",
				"challenge_number":  42,
				"day":               3,
				"difficulty":        "0000ffff",
				"no_pre_mine":       "abc123",
				"no_pre_mine_hour":  "7",
				"latest_submission": "2026-01-02T15:04:05Z",
				"issued_at":         "2026-01-02T14:04:05Z",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	challenge, err := client.FetchChallenge(context.Background())
	require.NoError(t, err)
	require.NotNil(t, challenge)

	assert.Equal(t, "ch-042", challenge.ChallengeID)
	assert.Equal(t, 42, challenge.ChallengeNumber)
	assert.Equal(t, 3, challenge.Day)
	assert.Equal(t, "0000ffff", challenge.Difficulty)
	assert.Equal(t, "2026-01-02T15:04:05Z", challenge.LatestSubmission)
}

func TestFetchChallenge_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "no challenges available",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	challenge, err := client.FetchChallenge(context.Background())
	require.Error(t, err)
	assert.Nil(t, challenge)
	assert.Contains(t, err.Error(), "no challenges available")
}

func TestSubmitSolution_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/solution/addr1/ch-042/nonce99", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"hash": "deadbeef",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	receipt, err := client.SubmitSolution(context.Background(), "addr1", "ch-042", "nonce99")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", receipt.Hash)
}

func TestSubmitSolution_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	receipt, err := client.SubmitSolution(context.Background(), "addr1", "ch-042", "nonce99")
	require.NoError(t, err)
	assert.Empty(t, receipt.Hash)
}

func TestSubmitSolution_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "challenge already solved",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	receipt, err := client.SubmitSolution(context.Background(), "addr1", "ch-042", "nonce99")
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Contains(t, err.Error(), "challenge already solved")
}
