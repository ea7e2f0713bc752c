package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v3"
)

// dataChannelLabel is the label of the control/event data channel.
const dataChannelLabel = "vb-events"

// WebRTCSession is the media-capable peer session. In addition to the
// Session interface it exposes the remote audio track (assistant speech)
// and accepts a local track (microphone capture).
type WebRTCSession struct {
	control

	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	sessionID string

	closeCh   chan struct{}
	readyCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	readyOnce sync.Once
	mu        sync.Mutex

	remoteTrack *webrtc.TrackRemote
	localTrack  *webrtc.TrackLocalStaticSample
	logger      *slog.Logger
}

// ConnectWebRTC establishes a WebRTC session: fetch an ephemeral
// credential, negotiate the peer connection, and open the event data
// channel.
func (c *Client) ConnectWebRTC(ctx context.Context) (*WebRTCSession, error) {
	secret, err := c.fetchCredential(ctx)
	if err != nil {
		return nil, err
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("peer: create peer connection: %w", err)
	}

	session := &WebRTCSession{
		pc:       pc,
		closeCh:  make(chan struct{}),
		readyCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
		logger:   slog.Default(),
	}
	session.control = control{send: session.sendEvent}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("peer: add audio transceiver: %w", err)
	}

	dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("peer: create data channel: %w", err)
	}
	session.dc = dc

	dc.OnOpen(func() {
		session.logger.Debug("peer: data channel opened")
		session.readyOnce.Do(func() { close(session.readyCh) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		session.dispatch(msg.Data)
	})
	dc.OnClose(func() {
		session.logger.Debug("peer: data channel closed")
		session.closeOnce.Do(func() { close(session.closeCh) })
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		session.logger.Debug("peer: remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			session.mu.Lock()
			session.remoteTrack = track
			session.mu.Unlock()
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("peer: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("peer: set local description: %w", err)
	}
	<-webrtc.GatheringCompletePromise(pc)

	answer, err := c.exchangeSDP(ctx, secret, pc.LocalDescription().SDP)
	if err != nil {
		pc.Close()
		return nil, err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("peer: set remote description: %w", err)
	}

	return session, nil
}

// exchangeSDP posts the offer to the signaling endpoint and returns the
// answer SDP.
func (c *Client) exchangeSDP(ctx context.Context, secret, sdp string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.SignalURL, bytes.NewReader([]byte(sdp)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("peer: exchange sdp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &Error{
			Code:       "sdp_exchange_failed",
			Message:    fmt.Sprintf("signaling endpoint returned %d: %s", resp.StatusCode, body),
			HTTPStatus: resp.StatusCode,
		}
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(answer), nil
}

// dispatch parses and forwards one inbound data channel message.
func (s *WebRTCSession) dispatch(data []byte) {
	event, err := parseServerEvent(data)
	if err != nil {
		s.deliver(eventOrError{err: err})
		return
	}

	if event.Type == EventTypeSessionCreated && event.Session != nil {
		s.mu.Lock()
		s.sessionID = event.Session.ID
		s.mu.Unlock()
	}

	s.deliver(eventOrError{event: event})
}

func (s *WebRTCSession) deliver(item eventOrError) {
	select {
	case <-s.closeCh:
	case s.eventsCh <- item:
	}
}

// Events returns an iterator over inbound server events.
func (s *WebRTCSession) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item := <-s.eventsCh:
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// Ready returns a channel closed once the control data channel is open.
// Control messages sent before then fail with "data channel not ready".
func (s *WebRTCSession) Ready() <-chan struct{} { return s.readyCh }

// Done returns a channel closed when the session is torn down, either by
// Close or by the transport.
func (s *WebRTCSession) Done() <-chan struct{} { return s.closeCh }

// SessionID returns the server-assigned session id.
func (s *WebRTCSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// RemoteTrack returns the remote audio track carrying assistant speech,
// nil until the track arrives.
func (s *WebRTCSession) RemoteTrack() *webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteTrack
}

// AddLocalTrack attaches the microphone track. Only one local track may be
// attached per session.
func (s *WebRTCSession) AddLocalTrack(track *webrtc.TrackLocalStaticSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localTrack != nil {
		return fmt.Errorf("peer: local audio track already added")
	}
	if _, err := s.pc.AddTrack(track); err != nil {
		return err
	}
	s.localTrack = track
	return nil
}

// StopLocalTrack detaches the local track reference. The supervisor calls
// this on disconnect so a stale track is never carried into the next
// session.
func (s *WebRTCSession) StopLocalTrack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localTrack = nil
}

// Close tears down the data channel and peer connection.
func (s *WebRTCSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		if s.dc != nil {
			s.dc.Close()
		}
		err = s.pc.Close()
	})
	return err
}

// sendEvent marshals and sends one control message over the data channel.
func (s *WebRTCSession) sendEvent(event map[string]any) error {
	if s.dc == nil || s.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return &Error{Code: "channel_not_ready", Message: "data channel not open"}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("peer: send", "content", truncateForLog(string(data), 500))
	}
	return s.dc.Send(data)
}

// truncateForLog caps wire dumps in debug logs.
func truncateForLog(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

var _ Session = (*WebRTCSession)(nil)
