// Command TTV-Toaster ingests live Twitch channel events and chat, normalizes
// them into a uniform envelope, and fans them out to connected overlay pages
// over WebSocket. It:
//   - Loads configuration and initializes structured logging.
//   - Wires the credential lifecycle manager (self-hosted or delegated-proxy
//     OAuth), the event bridge, the bounded event history, and the chat
//     admission filter.
//   - Starts the listener coordinator automatically when a stored credential
//     exists; otherwise waits for the operator to complete the OAuth flow.
//   - Exposes the HTTP surface: OAuth routes, filter and history APIs,
//     synthetic test events, /ws for display clients, /healthz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Dinir/TTV-Toaster/auth"
	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/chatfilter"
	"github.com/Dinir/TTV-Toaster/config"
	"github.com/Dinir/TTV-Toaster/history"
	"github.com/Dinir/TTV-Toaster/listener"
	"github.com/Dinir/TTV-Toaster/server"
	"github.com/Dinir/TTV-Toaster/telemetry"
	"github.com/Dinir/TTV-Toaster/transport"
	"github.com/Dinir/TTV-Toaster/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("ttv-toaster", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credential lifecycle
	helix := &twitchapi.HelixClient{ClientID: cfg.TwitchClientID}
	mgr := auth.NewManager(cfg, auth.NewStore(cfg.TokenFile), auth.NewStateStore(cfg.StateFile), helix)

	// Event pipeline: hub first, then the bridge that emits into it
	hub := transport.NewHub()
	hist := history.New(cfg.HistorySize)
	br := bridge.New(hist, hub)

	// Chat admission filter, restored from disk
	filterStore := chatfilter.NewFileStore(cfg.ChatFiltersFile)
	filterCfg, err := filterStore.Load()
	if err != nil {
		slog.Warn("failed to load chat filters, using defaults", slog.Any("err", err))
	}
	filters := chatfilter.NewEngine(filterCfg)

	// The two ingestion connections, owned by the coordinator
	coord := listener.NewCoordinator(mgr,
		listener.NewEventSubListener(mgr, br, helix),
		listener.NewChatListener(mgr, filters, br),
	)

	if mgr.HasStoredToken() {
		slog.Info("found existing authentication, starting listeners")
		if err := coord.Start(ctx); err != nil {
			slog.Error("failed to start listeners; re-authenticate via /auth/twitch", slog.Any("err", err))
		}
	} else {
		slog.Info("no authentication found; login via /auth/twitch")
	}

	handlers := server.NewHandlers(cfg, mgr, coord, br, hist, filters, filterStore, hub)
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.Addr))
		if err := server.Start(ctx, handlers, cfg.Addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	coord.Stop()
}
