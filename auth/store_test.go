package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadAbsent(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	rec, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record for absent file, got %+v", rec)
	}
}

func TestStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := NewStore(path)
	want := &TokenRecord{
		AccessToken:         "access",
		RefreshToken:        "refresh",
		ExpiresIn:           14400,
		ObtainmentTimestamp: 1700000000000,
		Scope:               []string{"chat:read", "bits:read"},
		UserID:              "12345",
		UserLogin:           "streamer",
		UserDisplayName:     "Streamer",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("tokens = %s/%s, want %s/%s", got.AccessToken, got.RefreshToken, want.AccessToken, want.RefreshToken)
	}
	if got.ObtainmentTimestamp != want.ObtainmentTimestamp {
		t.Errorf("obtainmentTimestamp = %d, want %d", got.ObtainmentTimestamp, want.ObtainmentTimestamp)
	}
	if got.UserLogin != "streamer" || got.UserID != "12345" {
		t.Errorf("identity = %s/%s, want streamer/12345", got.UserLogin, got.UserID)
	}
	if len(got.Scope) != 2 {
		t.Errorf("scope = %v, want 2 entries", got.Scope)
	}
}

func TestStoreDeleteAbsentIsNoError(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	if err := s.Delete(); err != nil {
		t.Errorf("Delete on absent file: %v", err)
	}
}

func TestStoreExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := NewStore(path)
	if s.Exists() {
		t.Error("Exists should be false before Save")
	}
	if err := s.Save(&TokenRecord{AccessToken: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists() {
		t.Error("Exists should be true after Save")
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists() {
		t.Error("Exists should be false after Delete")
	}
}

func TestStateStoreIssueConsume(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	state, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(state) != 32 {
		t.Errorf("state length = %d, want 32 hex chars", len(state))
	}
	if err := s.Consume(state); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	// Single use: the same nonce cannot be consumed twice.
	if err := s.Consume(state); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("second Consume = %v, want ErrStateInvalid", err)
	}
}

func TestStateStoreMismatchConsumesNonce(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	state, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := s.Consume("forged"); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("Consume(forged) = %v, want ErrStateInvalid", err)
	}
	// The mismatch burned the nonce, so even the genuine value is now invalid.
	if err := s.Consume(state); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Consume after forged attempt = %v, want ErrStateInvalid", err)
	}
}

func TestStateStoreConsumeWithoutIssue(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	if err := s.Consume("anything"); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Consume without Issue = %v, want ErrStateInvalid", err)
	}
}

func TestStateStoreReissueReplaces(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	first, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first == second {
		t.Fatal("nonces should differ between issues")
	}
	if err := s.Consume(first); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Consume(first) after reissue = %v, want ErrStateInvalid", err)
	}
}
