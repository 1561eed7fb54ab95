package listener

import (
	"encoding/json"
	"testing"

	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/history"
)

type captureSink struct {
	events []bridge.Envelope
}

func (s *captureSink) Emit(ev bridge.Envelope) {
	s.events = append(s.events, ev)
}

func newDispatchFixture() (*EventSubListener, *captureSink) {
	sink := &captureSink{}
	br := bridge.New(history.New(10), sink)
	return &EventSubListener{bridge: br}, sink
}

func TestChannelSubscriptions(t *testing.T) {
	subs := channelSubscriptions("42", "sess")
	if len(subs) != 6 {
		t.Fatalf("got %d subscriptions, want 6", len(subs))
	}
	wantTypes := map[string]string{
		"channel.raid":               "1",
		"channel.follow":             "2",
		"channel.subscribe":          "1",
		"channel.subscription.gift":  "1",
		"channel.cheer":              "1",
		"channel.channel_points_custom_reward_redemption.add": "1",
	}
	for _, sub := range subs {
		wantVersion, ok := wantTypes[sub.Type]
		if !ok {
			t.Errorf("unexpected subscription type %q", sub.Type)
			continue
		}
		if sub.Version != wantVersion {
			t.Errorf("%s version = %s, want %s", sub.Type, sub.Version, wantVersion)
		}
		if sub.Transport.Method != "websocket" || sub.Transport.SessionID != "sess" {
			t.Errorf("%s transport = %+v", sub.Type, sub.Transport)
		}
		delete(wantTypes, sub.Type)
	}
	if len(wantTypes) != 0 {
		t.Errorf("missing subscription types: %v", wantTypes)
	}

	// The raid condition targets the broadcaster being raided; the follow
	// condition doubles the user as its own moderator.
	for _, sub := range subs {
		switch sub.Type {
		case "channel.raid":
			if sub.Condition["to_broadcaster_user_id"] != "42" {
				t.Errorf("raid condition = %v", sub.Condition)
			}
		case "channel.follow":
			if sub.Condition["broadcaster_user_id"] != "42" || sub.Condition["moderator_user_id"] != "42" {
				t.Errorf("follow condition = %v", sub.Condition)
			}
		default:
			if sub.Condition["broadcaster_user_id"] != "42" {
				t.Errorf("%s condition = %v", sub.Type, sub.Condition)
			}
		}
	}
}

func TestDispatchRaid(t *testing.T) {
	l, sink := newDispatchFixture()
	l.dispatch("channel.raid", json.RawMessage(`{
		"from_broadcaster_user_login": "raider",
		"from_broadcaster_user_name": "Raider",
		"viewers": 23
	}`))
	if len(sink.events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != bridge.KindRaid {
		t.Errorf("type = %s, want raid", ev.Type)
	}
	if ev.Data["username"] != "raider" || ev.Data["viewerCount"] != 23 {
		t.Errorf("data = %v", ev.Data)
	}
}

func TestDispatchFollow(t *testing.T) {
	l, sink := newDispatchFixture()
	l.dispatch("channel.follow", json.RawMessage(`{"user_login":"fan","user_name":"Fan"}`))
	if len(sink.events) != 1 || sink.events[0].Type != bridge.KindFollow {
		t.Fatalf("events = %+v", sink.events)
	}
}

func TestDispatchGiftAnonymous(t *testing.T) {
	l, sink := newDispatchFixture()
	l.dispatch("channel.subscription.gift", json.RawMessage(`{
		"is_anonymous": true,
		"total": 5,
		"tier": "1000",
		"cumulative_total": 0
	}`))
	if len(sink.events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Data["username"] != "Anonymous" || ev.Data["displayName"] != "Anonymous" {
		t.Errorf("anonymous gifter = %v/%v, want Anonymous", ev.Data["username"], ev.Data["displayName"])
	}
	if ev.Data["amount"] != 5 {
		t.Errorf("amount = %v, want 5", ev.Data["amount"])
	}
}

func TestDispatchRedemption(t *testing.T) {
	l, sink := newDispatchFixture()
	l.dispatch("channel.channel_points_custom_reward_redemption.add", json.RawMessage(`{
		"user_login": "redeemer",
		"user_name": "Redeemer",
		"user_input": "drink water",
		"reward": {"title": "Hydrate!", "cost": 500, "prompt": "stay hydrated"},
		"redeemed_at": "2026-01-01T00:00:00Z"
	}`))
	if len(sink.events) != 1 {
		t.Fatalf("emitted %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Data["rewardTitle"] != "Hydrate!" || ev.Data["rewardCost"] != 500 {
		t.Errorf("reward = %v/%v", ev.Data["rewardTitle"], ev.Data["rewardCost"])
	}
	if ev.Data["userInput"] != "drink water" {
		t.Errorf("userInput = %v", ev.Data["userInput"])
	}
}

func TestDispatchUnknownTypeIsIgnored(t *testing.T) {
	l, sink := newDispatchFixture()
	l.dispatch("channel.unknown", json.RawMessage(`{}`))
	if len(sink.events) != 0 {
		t.Errorf("unknown type emitted %d events, want 0", len(sink.events))
	}
}

func TestDispatchMalformedPayloadIsIgnored(t *testing.T) {
	l, sink := newDispatchFixture()
	l.dispatch("channel.cheer", json.RawMessage(`not json`))
	if len(sink.events) != 0 {
		t.Errorf("malformed payload emitted %d events, want 0", len(sink.events))
	}
}
