package reconcile

import (
	"errors"
	"testing"

	"github.com/voicebridge/voicebridge/pkg/peer"
	"github.com/voicebridge/voicebridge/pkg/transcript"
)

// fakeSender records submitted control messages.
type fakeSender struct {
	items     []*peer.Item
	clears    int
	responses int
	fail      error
}

func (f *fakeSender) CreateItem(item *peer.Item) error {
	if f.fail != nil {
		return f.fail
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeSender) ClearInput() error {
	if f.fail != nil {
		return f.fail
	}
	f.clears++
	return nil
}

func (f *fakeSender) CreateResponse() error {
	if f.fail != nil {
		return f.fail
	}
	f.responses++
	return nil
}

func newTestReconciler() (*Reconciler, *transcript.Ledger, *fakeSender) {
	ledger := transcript.NewLedger()
	sender := &fakeSender{}
	return New(ledger, sender), ledger, sender
}

func visibleByRole(l *transcript.Ledger, role transcript.Role) []transcript.Entry {
	var out []transcript.Entry
	for _, e := range l.Visible() {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// A full dual-source turn: the local final creates the user entry, the remote echo is
// discarded, and the assistant completion creates exactly one new entry.
func TestReconciler_DualSourceTurn(t *testing.T) {
	r, ledger, sender := newTestReconciler()

	id := r.BeginUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalInterim, Text: "test mess"})
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "test message"})
	r.EndUserTurn()

	e, _ := ledger.Get(id)
	if e.Content != "test message" || e.Status != transcript.StatusDone {
		t.Fatalf("user entry = %+v; want Done 'test message'", e)
	}
	if len(sender.items) != 1 || sender.items[0].Content != "test message" {
		t.Fatalf("submitted items = %+v; want one authoritative utterance", sender.items)
	}
	if sender.responses != 1 || sender.clears != 1 {
		t.Errorf("responses=%d clears=%d; want 1 and 1", sender.responses, sender.clears)
	}

	// Remote echo of the same turn: must not create a second user entry.
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_echo", Role: peer.RoleUser},
	})
	r.HandlePeer(&peer.ServerEvent{
		Type:       peer.EventTypeTranscriptionCompleted,
		ItemID:     "item_echo",
		Transcript: "test message",
	})
	if got := visibleByRole(ledger, transcript.RoleUser); len(got) != 1 {
		t.Fatalf("visible user entries = %d; want 1 (echo deduplicated)", len(got))
	}

	// Assistant output is always new.
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_a1", Role: peer.RoleAssistant},
	})
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCompleted,
		Item: &peer.Item{ID: "item_a1", Role: peer.RoleAssistant, Content: "message de test"},
	})

	got := visibleByRole(ledger, transcript.RoleAssistant)
	if len(got) != 1 {
		t.Fatalf("visible assistant entries = %d; want 1", len(got))
	}
	if got[0].Content != "message de test" || got[0].Status != transcript.StatusDone {
		t.Errorf("assistant entry = %+v; want Done 'message de test'", got[0])
	}
}

// A remote user item while a local turn is active
// is discarded.
func TestReconciler_RemoteUserEchoSuppressed(t *testing.T) {
	r, ledger, _ := newTestReconciler()

	r.BeginUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "hello"})
	r.EndUserTurn()

	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_dup", Role: peer.RoleUser, Content: "hello"},
	})

	if ledger.Has("item_dup") {
		t.Error("remote user echo created a ledger entry; want suppressed")
	}
}

func TestReconciler_EmptyFinalFallsThroughToPeer(t *testing.T) {
	r, ledger, sender := newTestReconciler()

	id := r.BeginUserTurn()
	r.EndUserTurn()

	e, _ := ledger.Get(id)
	if e.Visible {
		t.Error("placeholder should be hidden on empty final transcript")
	}
	if len(sender.items) != 0 {
		t.Errorf("submitted %d items; want 0 for empty transcript", len(sender.items))
	}

	// The peer-driven transcription now owns the turn.
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_u1", Role: peer.RoleUser},
	})
	r.HandlePeer(&peer.ServerEvent{
		Type:       peer.EventTypeTranscriptionCompleted,
		ItemID:     "item_u1",
		Transcript: "hello from vad",
	})

	e, ok := ledger.Get("item_u1")
	if !ok {
		t.Fatal("peer-driven user entry missing")
	}
	if e.Content != "hello from vad" || e.Status != transcript.StatusDone {
		t.Errorf("entry = %+v; want Done 'hello from vad'", e)
	}
}

func TestReconciler_AssistantDeltas(t *testing.T) {
	r, ledger, _ := newTestReconciler()

	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_a1", Role: peer.RoleAssistant},
	})
	r.HandlePeer(&peer.ServerEvent{Type: peer.EventTypeResponseDelta, ItemID: "item_a1", Delta: "bon"})
	r.HandlePeer(&peer.ServerEvent{Type: peer.EventTypeResponseDelta, ItemID: "item_a1", Delta: "jour"})

	e, _ := ledger.Get("item_a1")
	if e.Content != "bonjour" || e.Status != transcript.StatusInProgress {
		t.Fatalf("entry = %+v; want in-progress 'bonjour'", e)
	}

	r.HandlePeer(&peer.ServerEvent{Type: peer.EventTypeResponseDone})
	e, _ = ledger.Get("item_a1")
	if e.Status != transcript.StatusDone {
		t.Errorf("Status = %v; want Done after response.done", e.Status)
	}
}

func TestReconciler_LateDeltaDiscarded(t *testing.T) {
	r, ledger, _ := newTestReconciler()
	r.HandlePeer(&peer.ServerEvent{Type: peer.EventTypeResponseDelta, ItemID: "never_seen", Delta: "x"})
	if ledger.Len() != 0 {
		t.Errorf("Len = %d; want 0 (late delta must not create entries)", ledger.Len())
	}
}

func TestReconciler_UnknownTruncateAndEndedAreNoops(t *testing.T) {
	r, ledger, _ := newTestReconciler()
	r.HandlePeer(&peer.ServerEvent{Type: peer.EventTypeItemTruncated, ItemID: "stale_1", AudioEndMs: 100})
	r.HandlePeer(&peer.ServerEvent{Type: peer.EventTypeItemEnded, ItemID: "stale_2"})
	if ledger.Len() != 0 {
		t.Errorf("Len = %d; want 0", ledger.Len())
	}
}

func TestReconciler_SecondAssistantItemClosesFirst(t *testing.T) {
	r, ledger, _ := newTestReconciler()

	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_a1", Role: peer.RoleAssistant},
	})
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_a2", Role: peer.RoleAssistant},
	})

	e1, _ := ledger.Get("item_a1")
	if e1.Status != transcript.StatusDone {
		t.Errorf("first assistant entry status = %v; want Done (one in flight at a time)", e1.Status)
	}
	if id, ok := ledger.FindActive(transcript.RoleAssistant); !ok || id != "item_a2" {
		t.Errorf("FindActive = %q, %v; want item_a2", id, ok)
	}
}

func TestReconciler_ErrorEventBecomesBreadcrumb(t *testing.T) {
	r, ledger, _ := newTestReconciler()
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeError,
		Err:  &peer.EventError{Code: "overloaded", Message: "server busy"},
	})

	crumbs := visibleByRole(ledger, transcript.RoleBreadcrumb)
	if len(crumbs) != 1 || crumbs[0].Content != "server busy" {
		t.Fatalf("breadcrumbs = %+v; want one with the remote message", crumbs)
	}
}

func TestReconciler_TransportErrorSurfacesAsBreadcrumb(t *testing.T) {
	ledger := transcript.NewLedger()
	sender := &fakeSender{fail: errors.New("channel closed")}
	r := New(ledger, sender)

	r.BeginUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "hello"})
	r.EndUserTurn() // must not panic or propagate

	if crumbs := visibleByRole(ledger, transcript.RoleBreadcrumb); len(crumbs) == 0 {
		t.Error("transport failure should surface as a breadcrumb")
	}
}

func TestReconciler_LocalEventsWithoutTurnDiscarded(t *testing.T) {
	r, ledger, _ := newTestReconciler()
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "stale"})
	if ledger.Len() != 0 {
		t.Errorf("Len = %d; want 0", ledger.Len())
	}

	// After the turn ends, further local results are stale too.
	id := r.BeginUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "hello"})
	r.EndUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "clobbered"})

	e, _ := ledger.Get(id)
	if e.Content != "hello" {
		t.Errorf("Content = %q; want %q", e.Content, "hello")
	}
}

func TestReconciler_SuppressionEndsWithNextTurn(t *testing.T) {
	r, ledger, _ := newTestReconciler()

	r.BeginUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalFinal, Text: "hello"})
	r.EndUserTurn()
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_echo1", Role: peer.RoleUser},
	})
	if len(r.suppressed) != 1 {
		t.Fatalf("suppressed entries = %d; want 1", len(r.suppressed))
	}

	r.BeginUserTurn()
	if len(r.suppressed) != 0 {
		t.Errorf("suppressed entries = %d after a new turn; want table cleared", len(r.suppressed))
	}

	// The old echo's transcription now misses the table; it must stay a
	// warn-level no-op, not become a new entry.
	r.HandlePeer(&peer.ServerEvent{
		Type:       peer.EventTypeTranscriptionCompleted,
		ItemID:     "item_echo1",
		Transcript: "hello",
	})
	if ledger.Has("item_echo1") {
		t.Error("stale echo transcription created a ledger entry")
	}
}

func TestReconciler_ActiveAssistant(t *testing.T) {
	r, _, _ := newTestReconciler()
	if _, ok := r.ActiveAssistant(); ok {
		t.Error("ActiveAssistant on empty ledger should report none")
	}
	r.HandlePeer(&peer.ServerEvent{
		Type: peer.EventTypeItemCreated,
		Item: &peer.Item{ID: "item_a1", Role: peer.RoleAssistant},
	})
	if id, ok := r.ActiveAssistant(); !ok || id != "item_a1" {
		t.Errorf("ActiveAssistant = %q, %v; want item_a1", id, ok)
	}
}

func TestReconciler_BeginUserTurnFinalizesPrevious(t *testing.T) {
	r, ledger, _ := newTestReconciler()

	first := r.BeginUserTurn()
	r.HandleLocal(LocalEvent{Kind: LocalInterim, Text: "partial"})
	second := r.BeginUserTurn()

	e, _ := ledger.Get(first)
	if e.Status != transcript.StatusDone {
		t.Errorf("first turn status = %v; want Done before a new turn opens", e.Status)
	}
	if first == second {
		t.Error("turn ids must be unique")
	}
}
