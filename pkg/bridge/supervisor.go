package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/voicebridge/voicebridge/pkg/peer"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrTooManyAttempts is returned when the attempt gate is exhausted and the
// cooldown has not elapsed. Reset clears the gate.
var ErrTooManyAttempts = errors.New("bridge: too many connection attempts, try again later")

// Transport dials a peer session.
type Transport interface {
	Dial(ctx context.Context) (peer.Session, error)
}

// DialFunc adapts a function to the Transport interface.
type DialFunc func(ctx context.Context) (peer.Session, error)

func (f DialFunc) Dial(ctx context.Context) (peer.Session, error) { return f(ctx) }

// SupervisorConfig configures the connection supervisor.
type SupervisorConfig struct {
	// MaxAttempts caps consecutive connect attempts within Cooldown.
	// Zero means 3.
	MaxAttempts int

	// Cooldown is how long the gate stays closed once MaxAttempts is
	// reached. Zero means one minute.
	Cooldown time.Duration

	// RetryDelay is the pause before the single automatic reconnect after
	// an unexpected disconnect. Zero means two seconds.
	RetryDelay time.Duration
}

func (c *SupervisorConfig) fill() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
}

// Supervisor owns the connection lifecycle: the strict
// disconnected/connecting/connected cycle, the attempt/cooldown gate, the
// single scheduled retry after an unexpected drop, and the audio sink
// rebind on each new session.
type Supervisor struct {
	cfg       SupervisorConfig
	transport Transport
	clock     Clock
	logger    *slog.Logger
	sink      *AudioSink

	// onConnected runs outside the lock after every successful connect;
	// the coordinator uses it to pump events and re-sync the session.
	onConnected func(peer.Session)

	mu          sync.Mutex
	state       ConnState
	attempts    int
	lastAttempt time.Time
	desired     bool
	retry       Timer
	session     peer.Session
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = logger }
}

// WithAudioSink sets the sink rebound to each new session's remote track.
func WithAudioSink(sink *AudioSink) SupervisorOption {
	return func(s *Supervisor) { s.sink = sink }
}

// WithOnConnected sets the post-connect hook.
func WithOnConnected(fn func(peer.Session)) SupervisorOption {
	return func(s *Supervisor) { s.onConnected = fn }
}

// NewSupervisor creates a Supervisor dialing through transport.
func NewSupervisor(transport Transport, cfg SupervisorConfig, clock Clock, opts ...SupervisorOption) *Supervisor {
	cfg.fill()
	if clock == nil {
		clock = SystemClock()
	}
	s := &Supervisor{
		cfg:       cfg,
		transport: transport,
		clock:     clock,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the live peer session, nil unless connected.
func (s *Supervisor) Session() peer.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Connect dials a new session. It is a no-op when a session is already
// connecting or connected. Once MaxAttempts consecutive attempts have
// failed, further calls return ErrTooManyAttempts without consuming an
// attempt until Cooldown elapses or Reset is called.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}

	now := s.clock.Now()
	if s.attempts >= s.cfg.MaxAttempts {
		if now.Sub(s.lastAttempt) < s.cfg.Cooldown {
			s.mu.Unlock()
			return ErrTooManyAttempts
		}
		s.attempts = 0
	}
	s.attempts++
	s.lastAttempt = now
	s.state = StateConnecting
	s.desired = true
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	attempt := s.attempts
	s.mu.Unlock()

	s.logger.Info("bridge: connecting", "attempt", attempt)
	sess, err := s.transport.Dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.logger.Warn("bridge: connect failed", "attempt", attempt, "error", err)
		s.scheduleRetry()
		return fmt.Errorf("bridge: connect: %w", err)
	}

	s.mu.Lock()
	s.state = StateConnected
	s.attempts = 0
	s.session = sess
	s.mu.Unlock()

	s.rebindAudio(sess)
	s.logger.Info("bridge: connected", "session_id", sess.SessionID())
	if s.onConnected != nil {
		s.onConnected(sess)
	}
	return nil
}

// SessionClosed records that sess dropped without a Disconnect call. If the
// closed session is stale (already superseded) nothing happens; otherwise
// the supervisor tears down audio and schedules exactly one retry.
func (s *Supervisor) SessionClosed(sess peer.Session) {
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	s.session = nil
	s.state = StateDisconnected
	desired := s.desired
	s.mu.Unlock()

	s.teardownAudio(sess)
	s.logger.Warn("bridge: session dropped", "reconnect", desired)
	if desired {
		s.scheduleRetry()
	}
}

// Disconnect closes the session and stops any pending reconnect.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()
	s.desired = false
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	sess := s.session
	s.session = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	s.teardownAudio(sess)
	return sess.Close()
}

// Reset clears the attempt gate. It maps to an explicit user refresh.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
	s.lastAttempt = time.Time{}
}

// scheduleRetry arms the single automatic reconnect. A pending retry is
// never doubled up.
func (s *Supervisor) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.desired || s.retry != nil {
		return
	}
	s.retry = s.clock.AfterFunc(s.cfg.RetryDelay, func() {
		s.mu.Lock()
		s.retry = nil
		s.mu.Unlock()
		if err := s.Connect(context.Background()); err != nil {
			s.logger.Warn("bridge: scheduled reconnect failed", "error", err)
		}
	})
}

// rebindAudio points the sink at the new session's remote track. Detach
// always precedes attach so two tracks never feed the sink at once.
func (s *Supervisor) rebindAudio(sess peer.Session) {
	if s.sink == nil {
		return
	}
	s.sink.Detach()
	if provider, ok := sess.(interface{ RemoteTrack() *webrtc.TrackRemote }); ok {
		if track := provider.RemoteTrack(); track != nil {
			s.sink.Attach(track)
		}
	}
}

// teardownAudio stops the outbound track and detaches the sink.
func (s *Supervisor) teardownAudio(sess peer.Session) {
	if stopper, ok := sess.(interface{ StopLocalTrack() }); ok {
		stopper.StopLocalTrack()
	}
	if s.sink != nil {
		s.sink.Detach()
	}
}
