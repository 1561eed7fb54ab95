package chatfilter

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Engine evaluates messages against the current configuration. Safe for
// concurrent use; Replace swaps the configuration atomically so a message is
// never judged against a half-updated document.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	owner    string
	lastEmit time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewEngine returns an Engine starting from the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// SetOwner sets the channel owner login used by the mention condition.
func (e *Engine) SetOwner(login string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.owner = strings.ToLower(login)
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Replace swaps in a new configuration.
func (e *Engine) Replace(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Allows is the admission decision for one message, without rate limiting.
//
// Order: disabled filter admits everything; otherwise the allow conditions
// are tried first (any match admits, none configured admits), then the
// length bounds reject out-of-range messages regardless of the allow result.
func (e *Engine) Allows(username, message string) bool {
	e.mu.Lock()
	cfg := e.cfg
	owner := e.owner
	e.mu.Unlock()

	if !cfg.Enabled {
		return true
	}
	c := cfg.Conditions

	configured := c.Prefix != "" || c.MentionsChannelOwner || len(c.Keywords) > 0 || len(c.AllowedUsers) > 0
	allowed := !configured
	if !allowed {
		switch {
		case c.Prefix != "" && strings.HasPrefix(message, c.Prefix):
			allowed = true
		case c.MentionsChannelOwner && owner != "" && strings.Contains(strings.ToLower(message), "@"+owner):
			allowed = true
		case matchesKeyword(c.Keywords, message):
			allowed = true
		case containsUser(c.AllowedUsers, username):
			allowed = true
		}
	}
	if !allowed {
		return false
	}

	// Length bounds are a hard cap, applied even to allow-matched messages.
	// Counted in characters, not bytes, so non-ASCII chat is not over-counted.
	length := utf8.RuneCountInString(message)
	if c.MinLength > 0 && length < c.MinLength {
		return false
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return false
	}
	return true
}

// PermitEmission is the fixed-interval rate gate. Messages arriving inside
// the minimum inter-emission interval are dropped, not delayed.
func (e *Engine) PermitEmission() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rl := e.cfg.RateLimit
	if !rl.Enabled || rl.MaxPerSecond <= 0 {
		return true
	}
	now := e.now()
	interval := time.Duration(float64(time.Second) / rl.MaxPerSecond)
	if !e.lastEmit.IsZero() && now.Sub(e.lastEmit) < interval {
		return false
	}
	e.lastEmit = now
	return true
}

func matchesKeyword(keywords []string, message string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func containsUser(users []string, username string) bool {
	for _, u := range users {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}
