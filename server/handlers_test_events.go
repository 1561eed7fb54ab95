package server

import (
	"net/http"
	"strings"

	"github.com/Dinir/TTV-Toaster/bridge"
)

// HandleTestEvent constructs a synthetic payload for the requested kind and
// feeds it straight into the bridge, exactly as a real provider callback
// would. Useful for overlay development without a live channel.
func (h *Handlers) HandleTestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kind := strings.TrimPrefix(r.URL.Path, "/api/test/")
	if kind == "" || strings.Contains(kind, "/") {
		http.NotFound(w, r)
		return
	}
	if !h.fireTestEvent(kind) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "invalid event type",
			"validTypes": []string{bridge.KindRaid, bridge.KindFollow, bridge.KindSubscribe, bridge.KindGift, bridge.KindCheer, bridge.KindRedemption, bridge.KindChat},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "test " + kind + " event triggered",
	})
}

func (h *Handlers) fireTestEvent(kind string) bool {
	switch kind {
	case bridge.KindRaid:
		h.bridge.HandleRaid(bridge.RaidEvent{
			Username:    "teststreamer",
			DisplayName: "TestStreamer",
			ViewerCount: 42,
		})
	case bridge.KindFollow:
		h.bridge.HandleFollow(bridge.FollowEvent{
			Username:    "newfollower",
			DisplayName: "NewFollower",
		})
	case bridge.KindSubscribe:
		h.bridge.HandleSubscribe(bridge.SubscribeEvent{
			Username:    "testsub",
			DisplayName: "TestSub",
			Tier:        "1000",
		})
	case bridge.KindGift:
		h.bridge.HandleGift(bridge.GiftEvent{
			Username:         "generousgifter",
			DisplayName:      "GenerousGifter",
			Amount:           5,
			Tier:             "1000",
			CumulativeAmount: 10,
			ProfileImageURL:  "/images/default-avatar.png",
		})
	case bridge.KindCheer:
		h.bridge.HandleCheer(bridge.CheerEvent{
			Username:    "bitscheerer",
			DisplayName: "BitsCheerer",
			Bits:        100,
			Message:     "PogChamp Great stream! Cheer100",
		})
	case bridge.KindRedemption:
		h.bridge.HandleRedemption(bridge.RedemptionEvent{
			Username:     "redeemer",
			DisplayName:  "Redeemer",
			RewardTitle:  "Hydrate!",
			RewardCost:   500,
			RewardPrompt: "Make the streamer drink water",
			UserInput:    "Please drink some water!",
		})
	case bridge.KindChat:
		h.bridge.HandleChatMessage(bridge.ChatEvent{
			Username:     "chatter",
			DisplayName:  "Chatter",
			Message:      "!hello This is a test chat message",
			Color:        "#FF6347",
			IsMod:        true,
			IsSubscriber: true,
			Badges:       map[string]int{"moderator": 1, "subscriber": 12},
		})
	default:
		return false
	}
	return true
}
