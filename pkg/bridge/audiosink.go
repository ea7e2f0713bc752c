package bridge

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// AudioSink drains RTP audio from the peer's remote track into a playback
// writer. At most one track feeds the sink at a time: rebinding after a
// reconnect must detach the old track before attaching the new one, or two
// read loops would interleave packets into the writer.
type AudioSink struct {
	w      io.Writer
	logger *slog.Logger

	mu       sync.Mutex
	stop     chan struct{}
	speaking bool
}

// NewAudioSink creates a sink writing decoded payloads to w.
func NewAudioSink(w io.Writer, logger *slog.Logger) *AudioSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioSink{w: w, logger: logger}
}

// Attach starts draining track. Any previously attached track is detached
// first.
func (s *AudioSink) Attach(track *webrtc.TrackRemote) {
	s.Detach()

	s.mu.Lock()
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go s.drain(track, stop)
}

// Detach stops the current read loop and clears the speaking flag. Safe to
// call when nothing is attached.
func (s *AudioSink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.speaking = false
}

// Feed writes one decoded audio payload straight into the sink. It is the
// path for transports that carry assistant audio inline as events instead
// of on a media track.
func (s *AudioSink) Feed(payload []byte) {
	if len(payload) == 0 {
		return
	}
	s.mu.Lock()
	s.speaking = true
	s.mu.Unlock()
	if _, err := s.w.Write(payload); err != nil {
		s.logger.Warn("bridge: audio write failed", "error", err)
	}
}

// Idle clears the speaking flag once an inline audio stream finishes.
func (s *AudioSink) Idle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
}

// Speaking reports whether audio packets are currently flowing.
func (s *AudioSink) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *AudioSink) drain(track *webrtc.TrackRemote, stop chan struct{}) {
	for {
		var pkt *rtp.Packet
		var err error
		pkt, _, err = track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("bridge: remote track closed", "error", err)
			}
			s.setSpeaking(stop, false)
			return
		}

		select {
		case <-stop:
			return
		default:
		}

		if len(pkt.Payload) == 0 {
			continue
		}
		s.setSpeaking(stop, true)
		if _, err := s.w.Write(pkt.Payload); err != nil {
			s.logger.Warn("bridge: audio write failed", "error", err)
			return
		}
	}
}

// setSpeaking updates the flag only while this loop is still the attached
// one; a detached loop racing its stop signal must not flip state owned by
// its successor.
func (s *AudioSink) setSpeaking(stop chan struct{}, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != stop {
		return
	}
	s.speaking = v
}
