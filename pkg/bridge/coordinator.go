// Package bridge coordinates a bidirectional realtime translation session:
// it owns the connection lifecycle, keeps the peer session's instructions in
// step with the inferred language pair, and serializes every transcript
// mutation through one lock so the ledger, the reconciler and the pair
// state machine never race.
package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/voicebridge/voicebridge/pkg/langid"
	"github.com/voicebridge/voicebridge/pkg/langpair"
	"github.com/voicebridge/voicebridge/pkg/peer"
	"github.com/voicebridge/voicebridge/pkg/recognize"
	"github.com/voicebridge/voicebridge/pkg/reconcile"
	"github.com/voicebridge/voicebridge/pkg/transcript"
)

var (
	// ErrSyncInFlight rejects capture while a session update is settling.
	ErrSyncInFlight = errors.New("bridge: session update in flight, try again shortly")

	// ErrNotConnected rejects operations that need a live session.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrNoActiveResponse means there is nothing to cancel.
	ErrNoActiveResponse = errors.New("bridge: no response in flight")

	// ErrUnknownItem rejects cancellation of an id this session never saw.
	ErrUnknownItem = errors.New("bridge: unknown item")
)

// DefaultClassifyTimeout bounds one remote language classification.
const DefaultClassifyTimeout = 5 * time.Second

// Config configures a Coordinator.
type Config struct {
	// Pair is the language-pair policy.
	Pair langpair.Policy

	// Sync configures session synchronization.
	Sync SyncConfig

	// Supervisor configures the connection lifecycle.
	Supervisor SupervisorConfig

	// ClassifyTimeout bounds each utterance classification. Zero means
	// DefaultClassifyTimeout.
	ClassifyTimeout time.Duration
}

// Coordinator is the session root object. All transcript mutations, from
// either stream, funnel through its mutex; everything downstream of it
// (ledger, reconciler, pair state) is written single-threaded on purpose.
type Coordinator struct {
	cfg        Config
	clock      Clock
	logger     *slog.Logger
	classifier *langid.Classifier
	recognizer recognize.Recognizer

	audioOut     io.Writer
	sink         *AudioSink
	synchronizer *Synchronizer
	supervisor   *Supervisor

	mu        sync.Mutex
	ledger    *transcript.Ledger
	rec       *reconcile.Reconciler
	pair      *langpair.State
	lastFinal string

	// seq orders async classification results: only the newest utterance's
	// result may touch the pair state.
	seq atomic.Uint64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// WithClock sets the clock, for tests.
func WithClock(clock Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithAudioOutput routes assistant speech into w via an RTP sink.
func WithAudioOutput(w io.Writer) CoordinatorOption {
	return func(c *Coordinator) { c.audioOut = w }
}

// NewCoordinator wires a Coordinator around transport. classifier decides
// the language of each finished utterance; recognizer may be nil when the
// deployment relies on peer-side transcription only.
func NewCoordinator(transport Transport, classifier *langid.Classifier, recognizer recognize.Recognizer, cfg Config, opts ...CoordinatorOption) *Coordinator {
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = DefaultClassifyTimeout
	}

	c := &Coordinator{
		cfg:        cfg,
		clock:      SystemClock(),
		logger:     slog.Default(),
		classifier: classifier,
		recognizer: recognizer,
		pair:       langpair.New(cfg.Pair),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.audioOut != nil {
		c.sink = NewAudioSink(c.audioOut, c.logger)
	}
	c.ledger = transcript.NewLedger(transcript.WithLogger(c.logger), transcript.WithNow(c.clock.Now))
	c.rec = reconcile.New(c.ledger, sessionSender{c: c}, reconcile.WithLogger(c.logger))
	c.synchronizer = NewSynchronizer(nil, cfg.Sync, c.clock, WithSyncLogger(c.logger))

	supOpts := []SupervisorOption{
		WithSupervisorLogger(c.logger),
		WithOnConnected(c.handleConnected),
	}
	if c.sink != nil {
		supOpts = append(supOpts, WithAudioSink(c.sink))
	}
	c.supervisor = NewSupervisor(transport, cfg.Supervisor, c.clock, supOpts...)

	return c
}

// Connect dials the peer session, subject to the supervisor's attempt gate.
func (c *Coordinator) Connect(ctx context.Context) error {
	return c.supervisor.Connect(ctx)
}

// Disconnect ends the session and stops local recognition.
func (c *Coordinator) Disconnect() error {
	if c.recognizer != nil {
		if err := c.recognizer.Stop(); err != nil {
			c.logger.Warn("bridge: recognizer stop failed", "error", err)
		}
	}
	return c.supervisor.Disconnect()
}

// Refresh clears the attempt gate and dials again. It is the explicit user
// recovery path once automatic reconnects have been exhausted.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.supervisor.Reset()
	return c.supervisor.Connect(ctx)
}

// State returns the connection lifecycle state.
func (c *Coordinator) State() ConnState { return c.supervisor.State() }

// Pair returns the current language pair, zero until the first utterance
// is classified.
func (c *Coordinator) Pair() langpair.Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair.Pair()
}

// Speaking reports whether assistant audio is currently flowing.
func (c *Coordinator) Speaking() bool {
	if c.sink == nil {
		return false
	}
	return c.sink.Speaking()
}

// Transcript returns the visible transcript, oldest first.
func (c *Coordinator) Transcript() []transcript.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Visible()
}

// StartCapture opens a locally-recognized user turn. Capture is rejected
// while a session update is settling: speech recognized against a pair the
// peer has not applied yet would be translated the wrong way.
func (c *Coordinator) StartCapture(ctx context.Context) error {
	if c.synchronizer.Locked() {
		return ErrSyncInFlight
	}
	if c.supervisor.State() != StateConnected {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.rec.BeginUserTurn()
	c.lastFinal = ""
	main := c.pair.Pair().Main
	if main == langid.Unknown {
		main = c.pair.DefaultMain()
	}
	reset := c.pair.FirstUtterance()
	c.mu.Unlock()

	// Turns can also be fed by typed input; audio capture only runs when a
	// recognizer is configured.
	if c.recognizer == nil {
		return nil
	}
	if err := c.recognizer.Start(ctx, langid.Locale(main), reset); err != nil {
		c.mu.Lock()
		c.rec.EndUserTurn()
		c.mu.Unlock()
		return err
	}
	return nil
}

// StopCapture closes the turn, submits the utterance, and kicks off
// classification of the final text.
func (c *Coordinator) StopCapture() {
	if c.recognizer != nil {
		if err := c.recognizer.Stop(); err != nil {
			c.logger.Warn("bridge: recognizer stop failed", "error", err)
		}
	}

	c.mu.Lock()
	text := c.lastFinal
	c.lastFinal = ""
	c.rec.EndUserTurn()
	c.mu.Unlock()

	if text != "" {
		c.classifyAsync(text)
	}
}

// HandleRecognition is the recognizer result handler; plug it into the
// recognizer as its callback. It must stay non-blocking.
func (c *Coordinator) HandleRecognition(res recognize.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := reconcile.LocalInterim
	if res.Final {
		kind = reconcile.LocalFinal
		if strings.TrimSpace(res.Text) != "" {
			c.lastFinal = res.Text
		}
	}
	c.rec.HandleLocal(reconcile.LocalEvent{Kind: kind, Text: res.Text})
}

// CancelAssistant interrupts the in-flight assistant response, best effort.
// Output the peer emits after the cancel is still accepted.
func (c *Coordinator) CancelAssistant() error {
	c.mu.Lock()
	id, ok := c.rec.ActiveAssistant()
	c.mu.Unlock()
	if !ok {
		return ErrNoActiveResponse
	}
	return c.CancelItem(id)
}

// CancelItem cancels and truncates a specific assistant item. Ids this
// session never recorded are rejected rather than forwarded.
func (c *Coordinator) CancelItem(id string) error {
	c.mu.Lock()
	entry, ok := c.ledger.Get(id)
	c.mu.Unlock()
	if !ok || entry.Role != transcript.RoleAssistant {
		return ErrUnknownItem
	}

	sess := c.supervisor.Session()
	if sess == nil {
		return ErrNotConnected
	}

	if err := sess.CancelResponse(); err != nil {
		c.logger.Warn("bridge: cancel response failed", "error", err)
	}
	elapsed := int(c.clock.Now().Sub(entry.CreatedAt).Milliseconds())
	if elapsed < 0 {
		elapsed = 0
	}
	if err := sess.TruncateItem(id, 0, elapsed); err != nil {
		c.logger.Warn("bridge: truncate failed", "item_id", id, "error", err)
	}
	return nil
}

// classifyAsync classifies text off the lock and applies the result in
// sequence order.
func (c *Coordinator) classifyAsync(text string) {
	token := c.seq.Add(1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ClassifyTimeout)
		defer cancel()
		tag := c.classifier.Classify(ctx, text)
		c.applyClassification(token, tag)
	}()
}

// applyClassification feeds one classification into the pair machine. A
// result for anything but the newest utterance is stale: a newer utterance
// already owns the pair, and applying the old result would reorder swaps.
func (c *Coordinator) applyClassification(token uint64, tag langid.Tag) {
	c.mu.Lock()
	if token != c.seq.Load() {
		c.mu.Unlock()
		c.logger.Debug("bridge: stale classification discarded", "language", tag)
		return
	}
	change := c.pair.Apply(tag)
	pair := c.pair.Pair()
	if change != langpair.ChangeNone {
		c.rec.Breadcrumb("Translating between " + langid.DisplayName(pair.Main) +
			" and " + langid.DisplayName(pair.Target))
	}
	c.mu.Unlock()

	if change == langpair.ChangeNone {
		return
	}
	c.logger.Info("bridge: language pair changed",
		"change", change.String(), "main", pair.Main, "target", pair.Target)
	c.synchronizer.Sync(pair)
}

// handleConnected runs after every successful connect: rebind the
// synchronizer, re-push the pair once the channel is usable, and pump
// events until the session drops.
func (c *Coordinator) handleConnected(sess peer.Session) {
	c.synchronizer.SetSession(sess)
	go c.pump(sess)
}

func (c *Coordinator) pump(sess peer.Session) {
	// Media sessions signal readiness separately from connection setup;
	// control messages sent earlier would bounce off a closed channel.
	if rd, ok := sess.(interface {
		Ready() <-chan struct{}
		Done() <-chan struct{}
	}); ok {
		select {
		case <-rd.Ready():
		case <-rd.Done():
			c.supervisor.SessionClosed(sess)
			return
		}
	}

	c.resync()

	// Sessions with a media track deliver audio through the sink's RTP
	// loop; everything else carries it inline as audio.delta events.
	_, hasTrack := sess.(interface{ RemoteTrack() *webrtc.TrackRemote })
	inlineAudio := c.sink != nil && !hasTrack

	for ev, err := range sess.Events() {
		if err != nil {
			c.mu.Lock()
			c.rec.Breadcrumb("connection error: " + err.Error())
			c.mu.Unlock()
			break
		}
		if inlineAudio {
			switch ev.Type {
			case peer.EventTypeAudioDelta:
				c.sink.Feed(ev.Audio)
			case peer.EventTypeResponseDone:
				c.sink.Idle()
			}
		}
		c.mu.Lock()
		c.rec.HandlePeer(ev)
		c.mu.Unlock()
	}

	c.supervisor.SessionClosed(sess)
}

// resync re-pushes the current pair to a fresh session so a reconnect
// resumes with the same translation direction.
func (c *Coordinator) resync() {
	c.mu.Lock()
	pair := c.pair.Pair()
	c.mu.Unlock()
	if pair.Zero() {
		return
	}
	c.synchronizer.Sync(pair)
}

// sessionSender adapts the supervisor's current session to the
// reconciler's Sender. Calls while disconnected fail with ErrNotConnected,
// which the reconciler surfaces as a breadcrumb.
type sessionSender struct {
	c *Coordinator
}

func (s sessionSender) CreateItem(item *peer.Item) error {
	sess := s.c.supervisor.Session()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.CreateItem(item)
}

func (s sessionSender) ClearInput() error {
	sess := s.c.supervisor.Session()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.ClearInput()
}

func (s sessionSender) CreateResponse() error {
	sess := s.c.supervisor.Session()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.CreateResponse()
}
