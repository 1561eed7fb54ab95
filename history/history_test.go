package history

import (
	"fmt"
	"testing"
)

func TestRecordMostRecentFirst(t *testing.T) {
	h := New(10)
	h.Record("follow", map[string]any{"username": "a"})
	h.Record("raid", map[string]any{"username": "b"})

	got := h.List(0)
	if len(got) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(got))
	}
	if got[0].Type != "raid" || got[1].Type != "follow" {
		t.Errorf("order = [%s, %s], want [raid, follow]", got[0].Type, got[1].Type)
	}
}

func TestCapacityEviction(t *testing.T) {
	h := New(3)
	oldest := h.Record("chat", map[string]any{"n": 0})
	for i := 1; i <= 3; i++ {
		h.Record("chat", map[string]any{"n": i})
	}

	got := h.List(0)
	if len(got) != 3 {
		t.Fatalf("List returned %d entries, want capacity 3", len(got))
	}
	if got[0].Data["n"] != 3 {
		t.Errorf("newest entry n = %v, want 3", got[0].Data["n"])
	}
	if _, ok := h.GetByID(oldest.ID); ok {
		t.Error("evicted entry should not be reachable by id")
	}
}

func TestListLimit(t *testing.T) {
	h := New(10)
	for i := 0; i < 5; i++ {
		h.Record("chat", map[string]any{"n": i})
	}
	if got := h.List(2); len(got) != 2 {
		t.Errorf("List(2) returned %d entries, want 2", len(got))
	}
	if got := h.List(100); len(got) != 5 {
		t.Errorf("List(100) returned %d entries, want 5", len(got))
	}
	if got := h.List(-1); len(got) != 5 {
		t.Errorf("List(-1) returned %d entries, want all 5", len(got))
	}
}

func TestListByType(t *testing.T) {
	h := New(10)
	h.Record("follow", map[string]any{"username": "a"})
	h.Record("raid", map[string]any{"username": "b"})
	h.Record("follow", map[string]any{"username": "c"})

	follows := h.ListByType("follow", 0)
	if len(follows) != 2 {
		t.Fatalf("ListByType(follow) returned %d, want 2", len(follows))
	}
	if follows[0].Data["username"] != "c" {
		t.Errorf("most recent follow username = %v, want c", follows[0].Data["username"])
	}
	if got := h.ListByType("cheer", 0); len(got) != 0 {
		t.Errorf("ListByType(cheer) returned %d, want 0", len(got))
	}
}

func TestGetByID(t *testing.T) {
	h := New(10)
	e := h.Record("gift", map[string]any{"amount": 5})
	got, ok := h.GetByID(e.ID)
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if got.Type != "gift" {
		t.Errorf("type = %s, want gift", got.Type)
	}
	if _, ok := h.GetByID("does-not-exist"); ok {
		t.Error("unknown id should not be found")
	}
}

func TestClearAndStats(t *testing.T) {
	h := New(10)
	h.Record("chat", nil)
	h.Record("chat", nil)
	h.Record("raid", nil)

	s := h.GetStats()
	if s.Total != 3 {
		t.Errorf("total = %d, want 3", s.Total)
	}
	if s.ByType["chat"] != 2 || s.ByType["raid"] != 1 {
		t.Errorf("byType = %v, want chat:2 raid:1", s.ByType)
	}

	h.Clear()
	s = h.GetStats()
	if s.Total != 0 || len(s.ByType) != 0 {
		t.Errorf("after Clear stats = %+v, want empty", s)
	}
}

func TestZeroCapacityFallsBackToDefault(t *testing.T) {
	h := New(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		h.Record("chat", map[string]any{"n": fmt.Sprint(i)})
	}
	if got := len(h.List(0)); got != DefaultCapacity {
		t.Errorf("len = %d, want default capacity %d", got, DefaultCapacity)
	}
}
