package conversation

import "testing"

func TestHistoryAppendAndRecent(t *testing.T) {
	h := NewHistory(2)
	h.Append(RoleUser, "one")
	h.Append(RoleAssistant, "two")
	h.Append(RoleUser, "three")

	recent := h.Recent()
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].Content != "two" || recent[1].Content != "three" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestHistoryDefaultCap(t *testing.T) {
	h := NewHistory(0)
	if h.max != DefaultMaxMessages {
		t.Errorf("max = %d, want %d", h.max, DefaultMaxMessages)
	}
}

func TestHistorySessionIDIsStableAndUnique(t *testing.T) {
	a := NewHistory(5)
	b := NewHistory(5)
	if a.SessionID() == "" {
		t.Error("expected a non-empty session id")
	}
	if a.SessionID() != a.SessionID() {
		t.Error("session id changed across calls")
	}
	if a.SessionID() == b.SessionID() {
		t.Error("expected distinct histories to get distinct session ids")
	}
}
