package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Store persists the token record as a local JSON file. It has no business
// logic; the Manager owns the record and decides when to write it.
type Store struct {
	path string
}

// NewStore returns a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored token record. A missing file yields (nil, nil).
func (s *Store) Load() (*TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &rec, nil
}

// Save writes the record, replacing any previous content.
func (s *Store) Save(rec *TokenRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Delete removes the token file. Deleting an absent file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a token file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// StateStore holds the single outstanding authorization state nonce. The
// nonce is consumed on first use regardless of whether it matched.
type StateStore struct {
	path string
}

// NewStateStore returns a StateStore backed by the given file path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

type stateRecord struct {
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// Issue generates a fresh nonce and persists it, replacing any previous one.
func (s *StateStore) Issue() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	st := hex.EncodeToString(b)
	data, err := json.Marshal(stateRecord{State: st, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return "", fmt.Errorf("write state file: %w", err)
	}
	return st, nil
}

// Consume deletes the stored nonce and returns ErrStateInvalid unless the
// given value matches it. The delete happens even on mismatch so a forged
// callback cannot retry against the same nonce.
func (s *StateStore) Consume(state string) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ErrStateInvalid
	}
	_ = os.Remove(s.path)
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ErrStateInvalid
	}
	if state == "" || rec.State != state {
		return ErrStateInvalid
	}
	return nil
}
