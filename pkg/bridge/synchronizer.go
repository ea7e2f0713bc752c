package bridge

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voicebridge/voicebridge/pkg/langid"
	"github.com/voicebridge/voicebridge/pkg/langpair"
	"github.com/voicebridge/voicebridge/pkg/peer"
)

// SessionUpdater is the outbound slice of the peer session the synchronizer
// needs.
type SessionUpdater interface {
	UpdateSession(config *peer.SessionConfig) error
}

// DefaultInstructions is the interpreter prompt template. {{MAIN}} and
// {{TARGET}} are replaced with language display names on every sync.
const DefaultInstructions = "You are a live interpreter between {{MAIN}} and {{TARGET}}. " +
	"When the speaker uses {{MAIN}}, translate into {{TARGET}}; when the speaker uses {{TARGET}}, " +
	"translate into {{MAIN}}. Speak only the translation, nothing else."

// DefaultSettleDelay is how long the synchronizer stays locked after a
// session.update is sent. The peer applies updates asynchronously; a second
// update racing the first produces interleaved behavior, so triggers inside
// the window are dropped rather than queued.
const DefaultSettleDelay = 800 * time.Millisecond

// SyncConfig configures session synchronization.
type SyncConfig struct {
	// Instructions is the prompt template. Empty means DefaultInstructions.
	Instructions string

	// Voice, audio formats and transcription model are carried verbatim
	// into every session.update.
	Voice              string
	InputAudioFormat   string
	OutputAudioFormat  string
	TranscriptionModel string

	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration
}

// Synchronizer pushes the current language pair to the peer session,
// enforcing at most one update in flight.
//
// The lock is released on a settle-delay timer after the send, not when the
// send returns: the send only hands the frame to the transport, it says
// nothing about the peer having applied it.
type Synchronizer struct {
	cfg    SyncConfig
	clock  Clock
	logger *slog.Logger

	mu       sync.Mutex
	session  SessionUpdater
	inFlight bool
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncLogger sets the logger.
func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *Synchronizer) { s.logger = logger }
}

// NewSynchronizer creates a Synchronizer. session may be nil until the
// first connection binds one via SetSession.
func NewSynchronizer(session SessionUpdater, cfg SyncConfig, clock Clock, opts ...SyncOption) *Synchronizer {
	if cfg.Instructions == "" {
		cfg.Instructions = DefaultInstructions
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if clock == nil {
		clock = SystemClock()
	}
	s := &Synchronizer{
		cfg:     cfg,
		clock:   clock,
		logger:  slog.Default(),
		session: session,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSession rebinds the synchronizer to a new peer session, typically
// after a reconnect.
func (s *Synchronizer) SetSession(session SessionUpdater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// Locked reports whether an update is in flight. Callers use this to
// reject user actions that would race the pending update.
func (s *Synchronizer) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Sync sends a session.update carrying pair. It reports whether the update
// was sent: a trigger arriving while a previous update is settling is
// dropped, not queued, because the pair it carries is already stale by the
// time the lock clears.
func (s *Synchronizer) Sync(pair langpair.Pair) bool {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("bridge: sync dropped, update in flight",
			"main", pair.Main, "target", pair.Target)
		return false
	}
	session := s.session
	if session == nil {
		s.mu.Unlock()
		s.logger.Debug("bridge: sync skipped, no session bound")
		return false
	}
	s.inFlight = true
	s.mu.Unlock()

	config := s.buildConfig(pair)
	if err := session.UpdateSession(config); err != nil {
		s.logger.Warn("bridge: session update failed", "error", err)
		// Nothing reached the peer, so there is nothing to settle.
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		return false
	}

	s.logger.Info("bridge: session synced", "main", pair.Main, "target", pair.Target)
	s.clock.AfterFunc(s.cfg.SettleDelay, func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	})
	return true
}

// buildConfig renders the instructions for pair and assembles the update.
// The timestamp suffix makes consecutive payloads distinct so the peer
// cannot coalesce a re-sync of the same pair after a reconnect.
func (s *Synchronizer) buildConfig(pair langpair.Pair) *peer.SessionConfig {
	instructions := strings.NewReplacer(
		"{{MAIN}}", langid.DisplayName(pair.Main),
		"{{TARGET}}", langid.DisplayName(pair.Target),
	).Replace(s.cfg.Instructions)
	instructions += fmt.Sprintf("\n[sync %d]", s.clock.Now().UnixMilli())

	config := &peer.SessionConfig{
		Instructions:      instructions,
		Voice:             s.cfg.Voice,
		InputAudioFormat:  s.cfg.InputAudioFormat,
		OutputAudioFormat: s.cfg.OutputAudioFormat,
	}
	if s.cfg.TranscriptionModel != "" {
		config.Transcription = &peer.TranscriptionConfig{Model: s.cfg.TranscriptionModel}
	}
	return config
}
