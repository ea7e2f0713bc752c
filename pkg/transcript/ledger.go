// Package transcript holds the ordered, deduplicated conversation ledger.
//
// The ledger is append-only at the entry level: entries are created once,
// grown or corrected in place, and hidden rather than deleted, so the full
// history of a session survives for audit. Every operation is idempotent
// with respect to repeated identical calls, and operations referencing
// unknown ids degrade to logged no-ops instead of errors — a late delta or
// a stale truncate from the remote peer must never crash the session.
package transcript

import (
	"log/slog"
	"time"
)

// Entry is one transcript line.
type Entry struct {
	// ID is the opaque stable identifier, unique within a session,
	// assigned at creation and never reused.
	ID string `json:"id"`

	// Role identifies the entry's source.
	Role Role `json:"role"`

	// Content is the entry text. It may be empty (placeholder state) and
	// grows via AppendDelta or is rewritten via Replace.
	Content string `json:"content"`

	// Status is the lifecycle status.
	Status Status `json:"status"`

	// Visible is false for entries hidden from the conversation view.
	// Hidden entries are never removed mid-session.
	Visible bool `json:"visible"`

	// CreatedAt is used for playback-offset calculations such as
	// truncation at a given audio offset.
	CreatedAt time.Time `json:"created_at"`

	// corrected records the one allowed post-Done content correction.
	corrected bool
}

// Ledger is the conversation ledger.
//
// Ledger is not safe for concurrent use: it is owned by the session
// coordinator, which serializes all mutation (the Go rendition of a
// single-threaded event loop).
type Ledger struct {
	entries []*Entry
	index   map[string]*Entry
	logger  *slog.Logger
	now     func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger sets the logger used for ignored-operation warnings.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

// WithNow sets the clock used for CreatedAt stamps.
func WithNow(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		index:  make(map[string]*Entry),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create adds a new visible entry in Pending status. If id already exists
// the call is a logged no-op: creation is single-shot per id.
func (l *Ledger) Create(id string, role Role, content string) {
	if _, ok := l.index[id]; ok {
		l.logger.Warn("transcript: duplicate create ignored", "id", id, "role", role.String())
		return
	}
	e := &Entry{
		ID:        id,
		Role:      role,
		Content:   content,
		Status:    StatusPending,
		Visible:   true,
		CreatedAt: l.now(),
	}
	l.entries = append(l.entries, e)
	l.index[id] = e
}

// AppendDelta concatenates delta onto the entry's content. A delta for an
// absent id is a discardable late event, not an error.
func (l *Ledger) AppendDelta(id, delta string) {
	e, ok := l.index[id]
	if !ok {
		l.logger.Debug("transcript: late delta discarded", "id", id)
		return
	}
	e.Content += delta
}

// Replace overwrites the entry's content, used for correcting placeholder
// or interim text with a final value. A Done entry may be corrected exactly
// once; further corrections are ignored with a warning.
func (l *Ledger) Replace(id, content string) {
	e, ok := l.index[id]
	if !ok {
		l.logger.Warn("transcript: replace on unknown entry ignored", "id", id)
		return
	}
	if e.Status == StatusDone {
		if e.corrected {
			l.logger.Warn("transcript: entry already corrected once, replace ignored", "id", id)
			return
		}
		e.corrected = true
	}
	e.Content = content
}

// SetStatus moves the entry's status forward. Transitions to an earlier
// state are ignored with a warning, never an error. Error is accepted from
// any state.
func (l *Ledger) SetStatus(id string, status Status) {
	e, ok := l.index[id]
	if !ok {
		l.logger.Warn("transcript: status for unknown entry ignored", "id", id, "status", status.String())
		return
	}
	if e.Status == status {
		return
	}
	if !e.Status.canTransition(status) {
		l.logger.Warn("transcript: status regression ignored",
			"id", id, "from", e.Status.String(), "to", status.String())
		return
	}
	e.Status = status
}

// Hide marks the entry invisible. The entry stays in the ledger.
func (l *Ledger) Hide(id string) {
	e, ok := l.index[id]
	if !ok {
		l.logger.Warn("transcript: hide on unknown entry ignored", "id", id)
		return
	}
	e.Visible = false
}

// Get returns a copy of the entry with the given id.
func (l *Ledger) Get(id string) (Entry, bool) {
	e, ok := l.index[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Has reports whether an entry with the given id exists.
func (l *Ledger) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// FindActive returns the id of the most recent InProgress entry for role,
// scanning newest-first. It is used to decide whether an interruption or
// cancellation target exists.
func (l *Ledger) FindActive(role Role) (string, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.Role == role && e.Status == StatusInProgress {
			return e.ID, true
		}
	}
	return "", false
}

// Entries returns a snapshot of all entries in creation order, including
// hidden ones.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Visible returns a snapshot of the visible entries in creation order.
func (l *Ledger) Visible() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Visible {
			out = append(out, *e)
		}
	}
	return out
}

// Len returns the total number of entries, hidden included.
func (l *Ledger) Len() int { return len(l.entries) }
