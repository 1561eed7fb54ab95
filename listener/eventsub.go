package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dinir/TTV-Toaster/auth"
	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/twitchapi"
)

// DefaultEventSubURL is the production EventSub WebSocket endpoint.
const DefaultEventSubURL = "wss://eventsub.wss.twitch.tv/ws"

const welcomeTimeout = 10 * time.Second

// EventSubListener maintains the EventSub WebSocket connection, creates the
// channel subscriptions for the authenticated user, and dispatches incoming
// notifications to the bridge.
type EventSubListener struct {
	auth   *auth.Manager
	bridge *bridge.Bridge
	helix  *twitchapi.HelixClient

	// URL overrides the EventSub endpoint (tests only).
	URL string

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewEventSubListener wires the EventSub listener to its collaborators.
func NewEventSubListener(mgr *auth.Manager, br *bridge.Bridge, helix *twitchapi.HelixClient) *EventSubListener {
	return &EventSubListener{auth: mgr, bridge: br, helix: helix}
}

func (l *EventSubListener) Name() string { return "eventsub" }

func (l *EventSubListener) url() string {
	if l.URL != "" {
		return l.URL
	}
	return DefaultEventSubURL
}

// wsMessage is the EventSub WebSocket frame envelope.
type wsMessage struct {
	Metadata struct {
		MessageType      string `json:"message_type"`
		SubscriptionType string `json:"subscription_type"`
	} `json:"metadata"`
	Payload json.RawMessage `json:"payload"`
}

type welcomePayload struct {
	Session struct {
		ID                      string `json:"id"`
		KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
	} `json:"session"`
}

type notificationPayload struct {
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
	Event json.RawMessage `json:"event"`
}

// Start dials the EventSub socket, waits for the session welcome, and
// registers the six channel subscriptions. Any subscription failure aborts
// the start; a half-subscribed session is torn down.
func (l *EventSubListener) Start(ctx context.Context) error {
	token, err := l.auth.AccessToken(ctx)
	if err != nil {
		return err
	}
	rec := l.auth.Current()
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("no user identity on token record; re-run the oauth flow")
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, l.url(), nil)
	if err != nil {
		return fmt.Errorf("eventsub dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	session, keepalive, err := awaitWelcome(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	for _, sub := range channelSubscriptions(rec.UserID, session) {
		if err := l.helix.CreateEventSubSubscription(ctx, token, sub); err != nil {
			_ = conn.Close()
			return err
		}
		slog.Info("eventsub subscribed", slog.String("type", sub.Type))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.conn = conn
	l.cancel = cancel
	l.mu.Unlock()
	go l.readLoop(runCtx, conn, keepalive)
	slog.Info("eventsub listening", slog.String("channel", rec.UserLogin), slog.String("channel_id", rec.UserID))
	return nil
}

// Stop closes the socket. Stopping a listener that never connected is not
// an error.
func (l *EventSubListener) Stop() error {
	l.mu.Lock()
	conn := l.conn
	cancel := l.cancel
	l.conn = nil
	l.cancel = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	cancel()
	if err := conn.Close(); err != nil {
		return fmt.Errorf("eventsub close: %w", err)
	}
	slog.Info("eventsub stopped")
	return nil
}

func awaitWelcome(conn *websocket.Conn) (sessionID string, keepalive time.Duration, err error) {
	_ = conn.SetReadDeadline(time.Now().Add(welcomeTimeout))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return "", 0, fmt.Errorf("eventsub welcome read: %w", err)
	}
	if msg.Metadata.MessageType != "session_welcome" {
		return "", 0, fmt.Errorf("eventsub: expected session_welcome, got %q", msg.Metadata.MessageType)
	}
	var welcome welcomePayload
	if err := json.Unmarshal(msg.Payload, &welcome); err != nil {
		return "", 0, fmt.Errorf("eventsub welcome parse: %w", err)
	}
	if welcome.Session.ID == "" {
		return "", 0, fmt.Errorf("eventsub welcome carried no session id")
	}
	keepalive = time.Duration(welcome.Session.KeepaliveTimeoutSeconds) * time.Second
	if keepalive <= 0 {
		keepalive = 10 * time.Second
	}
	return welcome.Session.ID, keepalive, nil
}

// channelSubscriptions lists every subscription the display surface needs.
func channelSubscriptions(userID, sessionID string) []twitchapi.EventSubRequest {
	transport := twitchapi.EventSubTransport{Method: "websocket", SessionID: sessionID}
	return []twitchapi.EventSubRequest{
		{Type: "channel.raid", Version: "1", Condition: map[string]string{"to_broadcaster_user_id": userID}, Transport: transport},
		{Type: "channel.follow", Version: "2", Condition: map[string]string{"broadcaster_user_id": userID, "moderator_user_id": userID}, Transport: transport},
		{Type: "channel.subscribe", Version: "1", Condition: map[string]string{"broadcaster_user_id": userID}, Transport: transport},
		{Type: "channel.subscription.gift", Version: "1", Condition: map[string]string{"broadcaster_user_id": userID}, Transport: transport},
		{Type: "channel.cheer", Version: "1", Condition: map[string]string{"broadcaster_user_id": userID}, Transport: transport},
		{Type: "channel.channel_points_custom_reward_redemption.add", Version: "1", Condition: map[string]string{"broadcaster_user_id": userID}, Transport: transport},
	}
}

// readLoop consumes frames until the connection drops or Stop is called.
// There is no automatic reconnect; a dead connection is surfaced in the log
// and the operator restarts via the coordinator.
func (l *EventSubListener) readLoop(ctx context.Context, conn *websocket.Conn, keepalive time.Duration) {
	for {
		// Twitch promises a keepalive within the negotiated window; twice
		// that without traffic means the connection is dead.
		_ = conn.SetReadDeadline(time.Now().Add(2 * keepalive))
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				slog.Error("eventsub connection lost", slog.Any("err", err))
			}
			return
		}
		switch msg.Metadata.MessageType {
		case "session_keepalive":
			// nothing to do
		case "notification":
			var note notificationPayload
			if err := json.Unmarshal(msg.Payload, &note); err != nil {
				slog.Warn("eventsub notification parse failed", slog.Any("err", err))
				continue
			}
			l.dispatch(note.Subscription.Type, note.Event)
		case "session_reconnect":
			slog.Warn("eventsub requested reconnect; restart listeners to resume")
		case "revocation":
			slog.Warn("eventsub subscription revoked", slog.String("type", msg.Metadata.SubscriptionType))
		}
	}
}

// dispatch maps a raw notification onto the bridge handler for its kind.
func (l *EventSubListener) dispatch(subType string, raw json.RawMessage) {
	switch subType {
	case "channel.raid":
		var e struct {
			FromLogin string `json:"from_broadcaster_user_login"`
			FromName  string `json:"from_broadcaster_user_name"`
			Viewers   int    `json:"viewers"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		l.bridge.HandleRaid(bridge.RaidEvent{Username: e.FromLogin, DisplayName: e.FromName, ViewerCount: e.Viewers})
	case "channel.follow":
		var e struct {
			UserLogin string `json:"user_login"`
			UserName  string `json:"user_name"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		l.bridge.HandleFollow(bridge.FollowEvent{Username: e.UserLogin, DisplayName: e.UserName})
	case "channel.subscribe":
		var e struct {
			UserLogin string `json:"user_login"`
			UserName  string `json:"user_name"`
			Tier      string `json:"tier"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		l.bridge.HandleSubscribe(bridge.SubscribeEvent{Username: e.UserLogin, DisplayName: e.UserName, Tier: e.Tier})
	case "channel.subscription.gift":
		var e struct {
			UserLogin       string `json:"user_login"`
			UserName        string `json:"user_name"`
			Total           int    `json:"total"`
			Tier            string `json:"tier"`
			IsAnonymous     bool   `json:"is_anonymous"`
			CumulativeTotal int    `json:"cumulative_total"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		username, display := e.UserLogin, e.UserName
		if e.IsAnonymous || username == "" {
			username, display = "Anonymous", "Anonymous"
		}
		l.bridge.HandleGift(bridge.GiftEvent{
			Username:         username,
			DisplayName:      display,
			Amount:           e.Total,
			Tier:             e.Tier,
			IsAnonymous:      e.IsAnonymous,
			CumulativeAmount: e.CumulativeTotal,
		})
	case "channel.cheer":
		var e struct {
			UserLogin string `json:"user_login"`
			UserName  string `json:"user_name"`
			Bits      int    `json:"bits"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		l.bridge.HandleCheer(bridge.CheerEvent{Username: e.UserLogin, DisplayName: e.UserName, Bits: e.Bits, Message: e.Message})
	case "channel.channel_points_custom_reward_redemption.add":
		var e struct {
			UserLogin string `json:"user_login"`
			UserName  string `json:"user_name"`
			UserInput string `json:"user_input"`
			Reward    struct {
				Title  string `json:"title"`
				Cost   int    `json:"cost"`
				Prompt string `json:"prompt"`
			} `json:"reward"`
			RedeemedAt string `json:"redeemed_at"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		l.bridge.HandleRedemption(bridge.RedemptionEvent{
			Username:     e.UserLogin,
			DisplayName:  e.UserName,
			RewardTitle:  e.Reward.Title,
			RewardCost:   e.Reward.Cost,
			RewardPrompt: e.Reward.Prompt,
			UserInput:    e.UserInput,
			RedeemedAt:   e.RedeemedAt,
		})
	default:
		slog.Debug("eventsub notification ignored", slog.String("type", subType))
	}
}
