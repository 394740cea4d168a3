package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default base URLs for the two campaign hosts. One Client talks to one host;
// commands construct the client for the endpoint they need.
const (
	DefaultDonateBaseURL = "https://scavenger.prod.gd.midnighttge.io"
	DefaultHuntBaseURL   = "https://sm.midnight.gd"
)

// Challenge is a proof-of-work challenge as returned by the campaign API.
type Challenge struct {
	ChallengeID      string `json:"challenge_id"`
	ChallengeNumber  int    `json:"challenge_number"`
	Day              int    `json:"day"`
	Difficulty       string `json:"difficulty"`
	NoPreMine        string `json:"no_pre_mine"`
	NoPreMineHour    string `json:"no_pre_mine_hour"`
	LatestSubmission string `json:"latest_submission"`
	IssuedAt         string `json:"issued_at"`
}

// DonationOutcome is the transport-level result of a single donation request.
// Any HTTP status, including 4xx/5xx, is a valid outcome rather than an error.
type DonationOutcome struct {
	StatusCode int
}

// SolutionReceipt is what the campaign API returns after accepting a solution.
// Hash is empty when the response body carries no hash field.
type SolutionReceipt struct {
	Hash string `json:"hash"`
}

// Client is the HTTP client for the scavenger campaign API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new campaign API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Donate reassigns the campaign allocation of original to destination using a
// pre-computed donation signature. The three path values are substituted
// verbatim. Any HTTP status is a success at this level: the outcome carries
// the status code and the error is non-nil only for transport failures.
func (c *Client) Donate(ctx context.Context, destination, original, signature string) (*DonationOutcome, error) {
	u := fmt.Sprintf("%s/donate_to/%s/%s/%s", c.baseURL, destination, original, signature)
	req, err := http.NewRequestWithContext(ctx, "POST", u, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug("donation dispatched",
		"original", original,
		"destination", destination,
		"status", resp.StatusCode,
	)
	return &DonationOutcome{StatusCode: resp.StatusCode}, nil
}

// FetchChallenge requests a new proof-of-work challenge from the campaign API.
func (c *Client) FetchChallenge(ctx context.Context) (*Challenge, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/challenge", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseErrorResponse(resp)
	}

	var envelope struct {
		Challenge Challenge `json:"challenge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("challenge fetched", "challenge_id", envelope.Challenge.ChallengeID)
	return &envelope.Challenge, nil
}

// SubmitSolution posts a solved nonce for a challenge. Non-2xx is an error.
// A JSON response body with a hash field populates the receipt; any other
// body yields an empty receipt.
func (c *Client) SubmitSolution(ctx context.Context, address, challengeID, nonce string) (*SolutionReceipt, error) {
	u := fmt.Sprintf("%s/api/solution/%s/%s/%s", c.baseURL, address, challengeID, nonce)
	req, err := http.NewRequestWithContext(ctx, "POST", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseErrorResponse(resp)
	}

	// The API does not always return JSON here; a non-JSON body is fine and
	// just means no hash was reported.
	var receipt SolutionReceipt
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &receipt); err != nil {
		receipt = SolutionReceipt{}
	}

	c.logger.Debug("solution submitted",
		"address", address,
		"challenge_id", challengeID,
		"hash", receipt.Hash,
	)
	return &receipt, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
