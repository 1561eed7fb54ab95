// Package bridge normalizes raw Twitch events into a uniform envelope and
// emits them to connected display clients.
//
// Each handler canonicalizes the field names of one event kind, applies
// defaults so every field a display client reads is always present, records
// the result in the shared history, and broadcasts it. Broadcast is fire and
// forget; an event is observable via the history even when no client is
// connected.
package bridge

import (
	"log/slog"
	"time"

	"github.com/Dinir/TTV-Toaster/history"
	"github.com/Dinir/TTV-Toaster/telemetry"
)

// Event kinds as they appear in envelopes and history entries.
const (
	KindRaid       = "raid"
	KindFollow     = "follow"
	KindSubscribe  = "subscribe"
	KindGift       = "gift"
	KindCheer      = "cheer"
	KindRedemption = "redemption"
	KindChat       = "chat"
)

// DefaultTier is used when a subscription event does not carry a tier.
// Twitch encodes tiers as "1000", "2000", "3000".
const DefaultTier = "1000"

// Envelope is the normalized, display-ready representation of any event.
type Envelope struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
}

// Sink receives normalized envelopes for fan-out to connected clients.
// Implementations must not block the caller.
type Sink interface {
	Emit(ev Envelope)
}

// Bridge turns raw per-kind payloads into envelopes. Handlers are
// independent per call and safe for concurrent use.
type Bridge struct {
	hist *history.History
	sink Sink
}

// New constructs a Bridge. The sink is created by the transport layer and
// passed in here, never resolved lazily.
func New(hist *history.History, sink Sink) *Bridge {
	return &Bridge{hist: hist, sink: sink}
}

func (b *Bridge) emit(kind string, data map[string]any) {
	ev := Envelope{Type: kind, Data: data, Timestamp: time.Now().UnixMilli()}
	slog.Debug("emitting event", slog.String("kind", kind))
	b.hist.Record(kind, data)
	telemetry.CountEvent(kind)
	b.sink.Emit(ev)
}

// RaidEvent is the raw payload for an incoming raid.
type RaidEvent struct {
	Username    string
	DisplayName string
	ViewerCount int
}

func (b *Bridge) HandleRaid(e RaidEvent) {
	b.emit(KindRaid, map[string]any{
		"username":    e.Username,
		"displayName": orDefault(e.DisplayName, e.Username),
		"viewerCount": e.ViewerCount,
	})
}

// FollowEvent is the raw payload for a new follower.
type FollowEvent struct {
	Username    string
	DisplayName string
}

func (b *Bridge) HandleFollow(e FollowEvent) {
	b.emit(KindFollow, map[string]any{
		"username":    e.Username,
		"displayName": orDefault(e.DisplayName, e.Username),
	})
}

// SubscribeEvent is the raw payload for a subscription.
type SubscribeEvent struct {
	Username    string
	DisplayName string
	Tier        string
}

func (b *Bridge) HandleSubscribe(e SubscribeEvent) {
	b.emit(KindSubscribe, map[string]any{
		"username":    e.Username,
		"displayName": orDefault(e.DisplayName, e.Username),
		"tier":        orDefault(e.Tier, DefaultTier),
	})
}

// GiftEvent is the raw payload for gifted subscriptions.
type GiftEvent struct {
	Username         string
	DisplayName      string
	Amount           int
	Tier             string
	IsAnonymous      bool
	CumulativeAmount int
	ProfileImageURL  string
}

func (b *Bridge) HandleGift(e GiftEvent) {
	b.emit(KindGift, map[string]any{
		"username":         e.Username,
		"displayName":      orDefault(e.DisplayName, e.Username),
		"amount":           e.Amount,
		"tier":             orDefault(e.Tier, DefaultTier),
		"isAnonymous":      e.IsAnonymous,
		"cumulativeAmount": e.CumulativeAmount,
		"profileImageUrl":  e.ProfileImageURL,
	})
}

// CheerEvent is the raw payload for a bits donation.
type CheerEvent struct {
	Username    string
	DisplayName string
	Bits        int
	Message     string
}

func (b *Bridge) HandleCheer(e CheerEvent) {
	b.emit(KindCheer, map[string]any{
		"username":    e.Username,
		"displayName": orDefault(e.DisplayName, e.Username),
		"bits":        e.Bits,
		"message":     e.Message,
	})
}

// RedemptionEvent is the raw payload for a channel points redemption.
type RedemptionEvent struct {
	Username        string
	DisplayName     string
	RewardTitle     string
	RewardCost      int
	RewardPrompt    string
	UserInput       string
	ProfileImageURL string
	RedeemedAt      string
}

func (b *Bridge) HandleRedemption(e RedemptionEvent) {
	b.emit(KindRedemption, map[string]any{
		"username":        e.Username,
		"displayName":     orDefault(e.DisplayName, e.Username),
		"rewardTitle":     e.RewardTitle,
		"rewardCost":      e.RewardCost,
		"rewardPrompt":    e.RewardPrompt,
		"userInput":       e.UserInput,
		"profileImageUrl": e.ProfileImageURL,
		"redeemedAt":      e.RedeemedAt,
	})
}

// ChatEvent is the raw payload for an admitted chat message.
type ChatEvent struct {
	Username     string
	DisplayName  string
	Message      string
	Color        string
	IsMod        bool
	IsSubscriber bool
	IsVip        bool
	Badges       map[string]int
}

func (b *Bridge) HandleChatMessage(e ChatEvent) {
	badges := e.Badges
	if badges == nil {
		badges = map[string]int{}
	}
	b.emit(KindChat, map[string]any{
		"username":     e.Username,
		"displayName":  orDefault(e.DisplayName, e.Username),
		"message":      e.Message,
		"color":        e.Color,
		"isMod":        e.IsMod,
		"isSubscriber": e.IsSubscriber,
		"isVip":        e.IsVip,
		"badges":       badges,
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
