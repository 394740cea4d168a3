// Package db implements the file-backed hunt database. The on-disk format
// is a single JSON object keyed by wallet address, compatible with the
// challenges.json files produced by earlier campaign tooling.
package db

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Challenge statuses.
const (
	StatusAvailable = "available"
	StatusSolved    = "solved"
	StatusExpired   = "expired"
)

// Challenge is one proof-of-work challenge queued for a wallet address.
// JSON tags match the shared challenges.json schema.
type Challenge struct {
	ID               string `json:"challengeId"`
	Number           int    `json:"challengeNumber"`
	CampaignDay      int    `json:"campaignDay"`
	Difficulty       string `json:"difficulty"`
	Status           string `json:"status"`
	NoPreMine        string `json:"noPreMine"`
	NoPreMineHour    string `json:"noPreMineHour"`
	LatestSubmission string `json:"latestSubmission"`
	AvailableAt      string `json:"availableAt"`
	SolvedAt         string `json:"solvedAt,omitempty"`
	Salt             string `json:"salt,omitempty"`
	Hash             string `json:"hash,omitempty"`
}

// WalletEntry holds everything tracked for one registered wallet address.
// The registration receipt is kept opaque so unknown fields round-trip.
type WalletEntry struct {
	RegistrationReceipt json.RawMessage `json:"registration_receipt"`
	ChallengeQueue      []Challenge     `json:"challenge_queue"`
}

// Hunt is the in-memory form of the hunt database, keyed by wallet address.
type Hunt map[string]*WalletEntry

// receiptFile is the shape of a registration receipt export.
type receiptFile struct {
	RegistrationReceipt json.RawMessage `json:"registration_receipt"`
	ChallengeQueue      []Challenge     `json:"challenge_queue"`
}

// Addresses returns the known wallet addresses in sorted order for
// deterministic iteration.
func (h Hunt) Addresses() []string {
	addrs := make([]string, 0, len(h))
	for addr := range h {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// MergeReceipt merges one registration receipt file into the hunt. A new
// address gets a fresh entry; an existing address keeps its entry and gains
// any challenges whose IDs are not already queued. Returns the wallet
// address and how many challenges were added.
func (h Hunt) MergeReceipt(raw []byte) (string, int, error) {
	var file receiptFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return "", 0, fmt.Errorf("failed to decode receipt: %w", err)
	}

	var receipt struct {
		WalletAddress string `json:"walletAddress"`
	}
	if len(file.RegistrationReceipt) > 0 {
		if err := json.Unmarshal(file.RegistrationReceipt, &receipt); err != nil {
			return "", 0, fmt.Errorf("failed to decode registration receipt: %w", err)
		}
	}
	if receipt.WalletAddress == "" {
		return "", 0, fmt.Errorf("receipt has no walletAddress")
	}

	entry, exists := h[receipt.WalletAddress]
	if !exists {
		queue := append([]Challenge(nil), file.ChallengeQueue...)
		sortQueue(queue)
		h[receipt.WalletAddress] = &WalletEntry{
			RegistrationReceipt: file.RegistrationReceipt,
			ChallengeQueue:      queue,
		}
		return receipt.WalletAddress, len(queue), nil
	}

	queued := make(map[string]bool, len(entry.ChallengeQueue))
	for _, c := range entry.ChallengeQueue {
		queued[c.ID] = true
	}
	added := 0
	for _, c := range file.ChallengeQueue {
		if !queued[c.ID] {
			entry.ChallengeQueue = append(entry.ChallengeQueue, c)
			queued[c.ID] = true
			added++
		}
	}
	if added > 0 {
		sortQueue(entry.ChallengeQueue)
	}
	return receipt.WalletAddress, added, nil
}

// AddChallenge queues a challenge for an address. Returns false when the
// address is unknown or the challenge ID is already queued.
func (h Hunt) AddChallenge(address string, c Challenge) bool {
	entry, exists := h[address]
	if !exists {
		return false
	}
	for _, queued := range entry.ChallengeQueue {
		if queued.ID == c.ID {
			return false
		}
	}
	entry.ChallengeQueue = append(entry.ChallengeQueue, c)
	sortQueue(entry.ChallengeQueue)
	return true
}

func sortQueue(queue []Challenge) {
	sort.Slice(queue, func(i, j int) bool {
		return queue[i].ID < queue[j].ID
	})
}

// Store reads and writes the hunt database file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Store{path: path, logger: logger}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the hunt database. A missing file yields an empty hunt;
// malformed JSON is an error.
func (s *Store) Load() (Hunt, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("hunt database not found, starting empty", "path", s.path)
			return Hunt{}, nil
		}
		return nil, fmt.Errorf("failed to read hunt database: %w", err)
	}

	var hunt Hunt
	if err := json.Unmarshal(data, &hunt); err != nil {
		return nil, fmt.Errorf("failed to decode hunt database %s: %w", s.path, err)
	}
	if hunt == nil {
		hunt = Hunt{}
	}
	return hunt, nil
}

// Save writes the hunt database atomically: a temp file in the same
// directory is renamed over the target so a crash never truncates it.
func (s *Store) Save(hunt Hunt) error {
	data, err := json.MarshalIndent(hunt, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode hunt database: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write hunt database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace hunt database: %w", err)
	}

	s.logger.Debug("hunt database saved", "path", s.path, "addresses", len(hunt))
	return nil
}
