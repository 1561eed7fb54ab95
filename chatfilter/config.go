// Package chatfilter decides which chat messages are admitted for broadcast.
// It combines an allow-if-any-match condition set, hard length bounds, and a
// fixed-interval rate gate, all hot-replaceable at runtime.
package chatfilter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Conditions is the allow/reject condition set. A message is admitted when
// ANY configured allow condition matches; when none are configured the
// filter is permissive. Length bounds are a hard cap applied afterwards,
// counted in characters (0 = unbounded).
type Conditions struct {
	Prefix               string   `json:"prefix"`
	MentionsChannelOwner bool     `json:"mentionsChannelOwner"`
	Keywords             []string `json:"keywords"`
	AllowedUsers         []string `json:"allowedUsers"`
	MinLength            int      `json:"minLength"`
	MaxLength            int      `json:"maxLength"`
}

// RateLimit is a fixed-interval gate with no queue or burst allowance.
type RateLimit struct {
	Enabled      bool    `json:"enabled"`
	MaxPerSecond float64 `json:"maxPerSecond"`
}

// Config is the full filter configuration, persisted as a whole document.
type Config struct {
	Enabled    bool       `json:"enabled"`
	Conditions Conditions `json:"conditions"`
	RateLimit  RateLimit  `json:"rateLimit"`
}

// Defaults are safe for big channels: commands only, 10 messages/sec.
func Defaults() Config {
	return Config{
		Enabled: true,
		Conditions: Conditions{
			Prefix:       "!",
			Keywords:     []string{},
			AllowedUsers: []string{},
		},
		RateLimit: RateLimit{Enabled: true, MaxPerSecond: 10},
	}
}

// Update is a partial configuration change. Sections left nil keep their
// previous value; a present section replaces the previous one wholesale, so
// no message is ever evaluated against a half-updated section.
type Update struct {
	Enabled    *bool       `json:"enabled"`
	Conditions *Conditions `json:"conditions"`
	RateLimit  *RateLimit  `json:"rateLimit"`
}

// Merge applies an update on top of the current configuration.
func Merge(cur Config, upd Update) Config {
	if upd.Enabled != nil {
		cur.Enabled = *upd.Enabled
	}
	if upd.Conditions != nil {
		cur.Conditions = *upd.Conditions
	}
	if upd.RateLimit != nil {
		cur.RateLimit = *upd.RateLimit
	}
	return cur
}

// FileStore persists the configuration as a local JSON file with
// replace-on-write semantics.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored configuration; an absent file yields Defaults().
func (s *FileStore) Load() (Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("read filter file: %w", err)
	}
	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("parse filter file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration, replacing any previous document.
func (s *FileStore) Save(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write filter file: %w", err)
	}
	return nil
}
