package transcript

import (
	"encoding/json"
	"testing"
	"time"
)

// Create is idempotent per id.
func TestLedger_Create_Idempotent(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleUser, "hello")
	l.Create("msg_1", RoleUser, "clobbered")

	if l.Len() != 1 {
		t.Fatalf("Len = %d; want 1", l.Len())
	}
	e, _ := l.Get("msg_1")
	if e.Content != "hello" {
		t.Errorf("Content = %q; want %q (second create must be a no-op)", e.Content, "hello")
	}
}

// Status never regresses.
func TestLedger_SetStatus_Monotonic(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleUser, "")

	l.SetStatus("msg_1", StatusDone)
	l.SetStatus("msg_1", StatusInProgress)

	e, _ := l.Get("msg_1")
	if e.Status != StatusDone {
		t.Errorf("Status = %v; want StatusDone (regression must be ignored)", e.Status)
	}
}

func TestLedger_SetStatus_ErrorTerminalFromAnywhere(t *testing.T) {
	tests := []Status{StatusPending, StatusInProgress, StatusDone}
	for _, from := range tests {
		t.Run(from.String(), func(t *testing.T) {
			l := NewLedger()
			l.Create("msg_1", RoleAssistant, "")
			l.SetStatus("msg_1", from)
			l.SetStatus("msg_1", StatusError)

			e, _ := l.Get("msg_1")
			if e.Status != StatusError {
				t.Errorf("Status = %v; want StatusError", e.Status)
			}
			// Nothing leaves Error.
			l.SetStatus("msg_1", StatusDone)
			e, _ = l.Get("msg_1")
			if e.Status != StatusError {
				t.Errorf("Status = %v; Error must be terminal", e.Status)
			}
		})
	}
}

func TestLedger_AppendDelta(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleAssistant, "")
	l.AppendDelta("msg_1", "message ")
	l.AppendDelta("msg_1", "de test")

	e, _ := l.Get("msg_1")
	if e.Content != "message de test" {
		t.Errorf("Content = %q; want %q", e.Content, "message de test")
	}
}

func TestLedger_AppendDelta_AbsentIsDiscarded(t *testing.T) {
	l := NewLedger()
	l.AppendDelta("ghost", "late")
	if l.Len() != 0 {
		t.Errorf("Len = %d; want 0 (late delta must not create entries)", l.Len())
	}
}

func TestLedger_Replace(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleUser, "interim tex")
	l.Replace("msg_1", "final text")

	e, _ := l.Get("msg_1")
	if e.Content != "final text" {
		t.Errorf("Content = %q; want %q", e.Content, "final text")
	}
}

func TestLedger_Replace_OneCorrectionAfterDone(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleUser, "final")
	l.SetStatus("msg_1", StatusDone)

	l.Replace("msg_1", "corrected")
	e, _ := l.Get("msg_1")
	if e.Content != "corrected" {
		t.Fatalf("Content = %q; want one post-hoc correction applied", e.Content)
	}

	l.Replace("msg_1", "corrected again")
	e, _ = l.Get("msg_1")
	if e.Content != "corrected" {
		t.Errorf("Content = %q; second post-Done correction must be ignored", e.Content)
	}
}

func TestLedger_Hide(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleUser, "whoops")
	l.Hide("msg_1")

	e, ok := l.Get("msg_1")
	if !ok {
		t.Fatal("hidden entry must remain in the ledger")
	}
	if e.Visible {
		t.Error("Visible = true; want false")
	}
	if n := len(l.Visible()); n != 0 {
		t.Errorf("Visible() has %d entries; want 0", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d; want 1", l.Len())
	}
}

func TestLedger_FindActive(t *testing.T) {
	l := NewLedger()
	l.Create("a1", RoleAssistant, "")
	l.SetStatus("a1", StatusDone)
	l.Create("a2", RoleAssistant, "")
	l.SetStatus("a2", StatusInProgress)
	l.Create("u1", RoleUser, "")
	l.SetStatus("u1", StatusInProgress)

	id, ok := l.FindActive(RoleAssistant)
	if !ok || id != "a2" {
		t.Errorf("FindActive(assistant) = %q, %v; want a2, true", id, ok)
	}
	id, ok = l.FindActive(RoleUser)
	if !ok || id != "u1" {
		t.Errorf("FindActive(user) = %q, %v; want u1, true", id, ok)
	}

	l.SetStatus("a2", StatusDone)
	if _, ok := l.FindActive(RoleAssistant); ok {
		t.Error("FindActive(assistant) found an entry; want none")
	}
}

func TestLedger_FindActive_NewestFirst(t *testing.T) {
	l := NewLedger()
	l.Create("a1", RoleAssistant, "")
	l.SetStatus("a1", StatusInProgress)
	l.Create("a2", RoleAssistant, "")
	l.SetStatus("a2", StatusInProgress)

	id, _ := l.FindActive(RoleAssistant)
	if id != "a2" {
		t.Errorf("FindActive = %q; want the newest in-progress entry a2", id)
	}
}

func TestLedger_UnknownIDOperationsAreNoops(t *testing.T) {
	l := NewLedger()
	// None of these may panic or create entries.
	l.Replace("ghost", "x")
	l.SetStatus("ghost", StatusDone)
	l.Hide("ghost")
	if l.Len() != 0 {
		t.Errorf("Len = %d; want 0", l.Len())
	}
}

func TestLedger_CreatedAt(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(WithNow(func() time.Time { return stamp }))
	l.Create("msg_1", RoleUser, "")

	e, _ := l.Get("msg_1")
	if !e.CreatedAt.Equal(stamp) {
		t.Errorf("CreatedAt = %v; want %v", e.CreatedAt, stamp)
	}
}

func TestEntry_JSON(t *testing.T) {
	l := NewLedger()
	l.Create("msg_1", RoleAssistant, "bonjour")
	l.SetStatus("msg_1", StatusInProgress)

	e, _ := l.Get("msg_1")
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if raw["role"] != "assistant" {
		t.Errorf("role = %v; want assistant", raw["role"])
	}
	if raw["status"] != "in_progress" {
		t.Errorf("status = %v; want in_progress", raw["status"])
	}
	if raw["visible"] != true {
		t.Errorf("visible = %v; want true", raw["visible"])
	}
}

func TestStatus_JSONRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusDone, StatusError} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal %v: %v", s, err)
		}
		var restored Status
		if err := json.Unmarshal(data, &restored); err != nil {
			t.Fatalf("Unmarshal %v: %v", s, err)
		}
		if restored != s {
			t.Errorf("roundtrip: got %v, want %v", restored, s)
		}
	}
}
