package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/Dinir/TTV-Toaster/auth"
	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/chatfilter"
	"github.com/Dinir/TTV-Toaster/telemetry"
)

// connectTimeout bounds how long Start waits for the IRC welcome before
// declaring the start failed.
const connectTimeout = 15 * time.Second

// ChatListener joins the authenticated user's own channel over IRC and feeds
// admitted messages through the filter engine into the bridge.
type ChatListener struct {
	auth    *auth.Manager
	filters *chatfilter.Engine
	bridge  *bridge.Bridge

	mu     sync.Mutex
	client *twitch.Client
}

// NewChatListener wires the chat listener to its collaborators.
func NewChatListener(mgr *auth.Manager, filters *chatfilter.Engine, br *bridge.Bridge) *ChatListener {
	return &ChatListener{auth: mgr, filters: filters, bridge: br}
}

func (l *ChatListener) Name() string { return "chat" }

// Start connects to IRC and begins relaying messages. It returns once the
// connection is established or the attempt failed.
func (l *ChatListener) Start(ctx context.Context) error {
	token, err := l.auth.AccessToken(ctx)
	if err != nil {
		return err
	}
	rec := l.auth.Current()
	if rec == nil || rec.UserLogin == "" {
		return fmt.Errorf("no user identity on token record; re-run the oauth flow")
	}
	l.filters.SetOwner(rec.UserLogin)

	client := twitch.NewClient(rec.UserLogin, "oauth:"+token)
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		l.handleMessage(msg)
	})

	ready := make(chan struct{})
	var once sync.Once
	client.OnConnect(func() {
		once.Do(func() { close(ready) })
	})

	errCh := make(chan error, 1)
	go func() {
		// Connect blocks for the lifetime of the connection.
		errCh <- client.Connect()
	}()

	select {
	case <-ready:
	case err := <-errCh:
		return fmt.Errorf("chat connect: %w", err)
	case <-time.After(connectTimeout):
		_ = client.Disconnect()
		return fmt.Errorf("chat connect timed out after %s", connectTimeout)
	case <-ctx.Done():
		_ = client.Disconnect()
		return ctx.Err()
	}

	client.Join(rec.UserLogin)
	l.mu.Lock()
	l.client = client
	l.mu.Unlock()
	slog.Info("chat connected", slog.String("channel", rec.UserLogin))
	return nil
}

// Stop disconnects from IRC. Stopping a listener that never connected is
// not an error.
func (l *ChatListener) Stop() error {
	l.mu.Lock()
	client := l.client
	l.client = nil
	l.mu.Unlock()
	if client == nil {
		return nil
	}
	if err := client.Disconnect(); err != nil {
		return fmt.Errorf("chat disconnect: %w", err)
	}
	slog.Info("chat disconnected")
	return nil
}

func (l *ChatListener) handleMessage(msg twitch.PrivateMessage) {
	if !l.filters.Allows(msg.User.Name, msg.Message) {
		telemetry.ChatFiltered.Inc()
		return
	}
	if !l.filters.PermitEmission() {
		telemetry.ChatRateLimited.Inc()
		return
	}
	telemetry.ChatAdmitted.Inc()
	l.bridge.HandleChatMessage(bridge.ChatEvent{
		Username:     msg.User.Name,
		DisplayName:  msg.User.DisplayName,
		Message:      msg.Message,
		Color:        msg.User.Color,
		IsMod:        msg.User.Badges["moderator"] > 0,
		IsSubscriber: msg.User.Badges["subscriber"] > 0,
		IsVip:        msg.User.Badges["vip"] > 0,
		Badges:       msg.User.Badges,
	})
}
