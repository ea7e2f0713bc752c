// Package reconcile merges two concurrent transcription streams into one
// transcript ledger.
//
// The local recognizer produces interim and final text for the user's own
// speech; the remote peer produces both echoes of that same speech and the
// assistant's translated output. The reconciler decides, per event, whether
// it opens a new ledger entry, updates an in-flight one, or is discarded as
// a duplicate or stale signal. The invariant it protects: the user never
// sees duplicate, stale, or out-of-order conversation content.
package reconcile

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/voicebridge/voicebridge/pkg/peer"
	"github.com/voicebridge/voicebridge/pkg/transcript"
)

// Sender is the outbound slice of the peer session the reconciler needs to
// submit the authoritative user utterance.
type Sender interface {
	CreateItem(item *peer.Item) error
	ClearInput() error
	CreateResponse() error
}

// LocalKind tags a local recognizer event.
type LocalKind int

const (
	// LocalInterim is a partial recognition result, subject to revision.
	LocalInterim LocalKind = iota
	// LocalFinal is a settled recognition result for the utterance.
	LocalFinal
)

// LocalEvent is one event from the local recognizer stream.
type LocalEvent struct {
	Kind LocalKind
	Text string
}

// Reconciler owns the dual-stream merge. It is not safe for concurrent
// use; the session coordinator serializes all calls.
type Reconciler struct {
	ledger *transcript.Ledger
	sender Sender
	logger *slog.Logger

	// userEntry is the ledger id of the current user turn, empty between
	// turns. localTurn marks it as locally sourced (recognizer-driven);
	// remote user payloads are suppressed while such a turn exists.
	// capturing is true between BeginUserTurn and EndUserTurn.
	userEntry string
	localTurn bool
	capturing bool

	// suppressed correlates peer user-item ids with the local entry that
	// already covers them, so their follow-up transcription events are
	// discarded too.
	suppressed map[string]string

	// assistantEntry is the in-flight assistant entry, empty when none.
	assistantEntry string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New creates a Reconciler writing into ledger and submitting user turns
// through sender.
func New(ledger *transcript.Ledger, sender Sender, opts ...Option) *Reconciler {
	r := &Reconciler{
		ledger:     ledger,
		sender:     sender,
		logger:     slog.Default(),
		suppressed: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newEntryID returns a fresh ledger entry id.
func newEntryID() string {
	return "msg_" + uuid.New().String()[:12]
}

// BeginUserTurn opens a placeholder entry for a locally-captured user turn
// and returns its id. A still-active previous user entry is finalized
// first: at most one user entry may be in progress at a time.
func (r *Reconciler) BeginUserTurn() string {
	if id, ok := r.ledger.FindActive(transcript.RoleUser); ok {
		if e, _ := r.ledger.Get(id); e.Content == "" {
			r.ledger.Hide(id)
		}
		r.ledger.SetStatus(id, transcript.StatusDone)
	}

	// Echo correlations belong to the previous turn; a new turn ends their
	// suppression window, so the table never outgrows one turn's echoes.
	clear(r.suppressed)

	id := newEntryID()
	r.ledger.Create(id, transcript.RoleUser, "")
	r.ledger.SetStatus(id, transcript.StatusInProgress)
	r.userEntry = id
	r.localTurn = true
	r.capturing = true
	return id
}

// HandleLocal applies one local recognizer event to the current user turn.
// Events arriving with no open turn are discarded as stale.
func (r *Reconciler) HandleLocal(ev LocalEvent) {
	if !r.capturing || r.userEntry == "" {
		r.logger.Debug("reconcile: local event without open turn discarded", "kind", ev.Kind)
		return
	}

	switch ev.Kind {
	case LocalInterim, LocalFinal:
		// Interim results replace the whole placeholder text rather than
		// appending: each result is a fresh hypothesis for the utterance.
		r.ledger.Replace(r.userEntry, ev.Text)
	}
}

// EndUserTurn closes the locally-captured turn. If the final recognized
// text is non-empty it becomes the authoritative user utterance: the
// peer's input buffer is cleared, the item is created remotely and a
// response is requested; the peer's own transcription of the same audio is
// then suppressed. An empty final transcript hides the placeholder and
// falls through to peer-driven transcription instead.
func (r *Reconciler) EndUserTurn() {
	if !r.capturing || r.userEntry == "" {
		return
	}
	r.capturing = false
	entry, ok := r.ledger.Get(r.userEntry)
	if !ok {
		r.userEntry = ""
		return
	}

	if entry.Content == "" {
		r.logger.Debug("reconcile: empty local transcript, deferring to peer transcription", "id", r.userEntry)
		r.ledger.Hide(r.userEntry)
		r.userEntry = ""
		r.localTurn = false
		return
	}

	r.ledger.SetStatus(r.userEntry, transcript.StatusDone)

	if err := r.sender.ClearInput(); err != nil {
		r.transportNotice("clear input failed", err)
	}
	if err := r.sender.CreateItem(&peer.Item{
		ID:      r.userEntry,
		Role:    peer.RoleUser,
		Content: entry.Content,
	}); err != nil {
		r.transportNotice("submit utterance failed", err)
		return
	}
	if err := r.sender.CreateResponse(); err != nil {
		r.transportNotice("request response failed", err)
	}
}

// HandlePeer applies one inbound peer event.
func (r *Reconciler) HandlePeer(ev *peer.ServerEvent) {
	switch ev.Type {
	case peer.EventTypeItemCreated:
		r.handleItemCreated(ev)
	case peer.EventTypeItemUpdated:
		if ev.Item != nil {
			r.ledger.Replace(ev.Item.ID, ev.Item.Content)
		}
	case peer.EventTypeItemCompleted:
		r.handleItemCompleted(ev)
	case peer.EventTypeTranscriptionCompleted:
		r.handleTranscription(ev)
	case peer.EventTypeResponseDelta:
		// Absent ids are late deltas; the ledger discards them quietly.
		r.ledger.AppendDelta(ev.ItemID, ev.Delta)
	case peer.EventTypeResponseDone:
		if r.assistantEntry != "" {
			r.ledger.SetStatus(r.assistantEntry, transcript.StatusDone)
			r.assistantEntry = ""
		}
	case peer.EventTypeItemTruncated:
		if !r.ledger.Has(ev.ItemID) {
			// The peer is referencing history this session never recorded
			// (stale id or post-reconnect mismatch). Never fatal.
			r.logger.Warn("reconcile: truncate for unknown item ignored", "item_id", ev.ItemID)
			return
		}
		r.ledger.SetStatus(ev.ItemID, transcript.StatusDone)
	case peer.EventTypeItemEnded:
		if !r.ledger.Has(ev.ItemID) {
			r.logger.Warn("reconcile: ended for unknown item ignored", "item_id", ev.ItemID)
			return
		}
		r.ledger.SetStatus(ev.ItemID, transcript.StatusDone)
		if ev.ItemID == r.assistantEntry {
			r.assistantEntry = ""
		}
	case peer.EventTypeError:
		msg := "remote error"
		if ev.Err != nil {
			msg = ev.Err.Message
		}
		r.Breadcrumb(msg)
	case peer.EventTypeAudioDelta, peer.EventTypeSessionCreated, peer.EventTypeSessionUpdated:
		// Audio goes to the sink, session lifecycle to the supervisor.
	default:
		r.logger.Debug("reconcile: unhandled peer event", "type", ev.Type)
	}
}

// handleItemCreated routes a new peer item by role.
func (r *Reconciler) handleItemCreated(ev *peer.ServerEvent) {
	if ev.Item == nil {
		r.logger.Warn("reconcile: item.created without item ignored")
		return
	}

	switch ev.Item.Role {
	case peer.RoleUser:
		// The peer echoes user input back as its own item. While a
		// locally-sourced turn covers this utterance, the echo would be a
		// duplicate: correlate and discard.
		if r.localTurn && r.userEntry != "" {
			r.suppressed[ev.Item.ID] = r.userEntry
			r.logger.Debug("reconcile: remote user echo suppressed",
				"item_id", ev.Item.ID, "entry", r.userEntry)
			return
		}
		r.ledger.Create(ev.Item.ID, transcript.RoleUser, ev.Item.Content)
		r.ledger.SetStatus(ev.Item.ID, transcript.StatusInProgress)
		r.userEntry = ev.Item.ID
		r.localTurn = false

	case peer.RoleAssistant:
		// One assistant entry in flight at a time: close the previous one
		// before opening the next.
		if r.assistantEntry != "" {
			r.ledger.SetStatus(r.assistantEntry, transcript.StatusDone)
		}
		r.ledger.Create(ev.Item.ID, transcript.RoleAssistant, ev.Item.Content)
		r.ledger.SetStatus(ev.Item.ID, transcript.StatusInProgress)
		r.assistantEntry = ev.Item.ID

	default:
		r.logger.Debug("reconcile: item with unhandled role ignored",
			"item_id", ev.Item.ID, "role", ev.Item.Role)
	}
}

// handleItemCompleted finalizes an item with its settled content.
func (r *Reconciler) handleItemCompleted(ev *peer.ServerEvent) {
	if ev.Item == nil {
		return
	}
	if _, ok := r.suppressed[ev.Item.ID]; ok {
		return
	}
	if !r.ledger.Has(ev.Item.ID) {
		r.logger.Warn("reconcile: completed for unknown item ignored", "item_id", ev.Item.ID)
		return
	}
	if ev.Item.Content != "" {
		r.ledger.Replace(ev.Item.ID, ev.Item.Content)
	}
	r.ledger.SetStatus(ev.Item.ID, transcript.StatusDone)
	if ev.Item.ID == r.assistantEntry {
		r.assistantEntry = ""
	}
}

// handleTranscription applies the peer's own transcription of user audio.
// Suppressed items (already covered by a local entry) are discarded.
func (r *Reconciler) handleTranscription(ev *peer.ServerEvent) {
	if entry, ok := r.suppressed[ev.ItemID]; ok {
		r.logger.Debug("reconcile: peer transcription suppressed", "item_id", ev.ItemID, "entry", entry)
		return
	}
	if !r.ledger.Has(ev.ItemID) {
		r.logger.Warn("reconcile: transcription for unknown item ignored", "item_id", ev.ItemID)
		return
	}
	r.ledger.Replace(ev.ItemID, ev.Transcript)
	r.ledger.SetStatus(ev.ItemID, transcript.StatusDone)
}

// Breadcrumb appends a visible system notice to the transcript.
func (r *Reconciler) Breadcrumb(text string) {
	id := "crumb_" + uuid.New().String()[:12]
	r.ledger.Create(id, transcript.RoleBreadcrumb, text)
	r.ledger.SetStatus(id, transcript.StatusDone)
}

// ActiveAssistant returns the in-flight assistant entry id, if any. It is
// the cancellation target for user interruptions.
func (r *Reconciler) ActiveAssistant() (string, bool) {
	return r.ledger.FindActive(transcript.RoleAssistant)
}

// transportNotice logs a transport failure and surfaces it as a
// breadcrumb. Transport errors never propagate past the reconciler; the
// supervisor's reconnect path picks the session back up.
func (r *Reconciler) transportNotice(msg string, err error) {
	r.logger.Warn("reconcile: "+msg, "error", err)
	r.Breadcrumb(msg)
}
