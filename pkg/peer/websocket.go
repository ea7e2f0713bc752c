package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSession is the control-only peer session. Audio flows as
// base64 audio.delta events instead of media tracks.
type WebSocketSession struct {
	control

	conn      *websocket.Conn
	sessionID string

	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	mu        sync.Mutex
	logger    *slog.Logger
}

// ConnectWebSocket establishes a WebSocket session.
func (c *Client) ConnectWebSocket(ctx context.Context) (*WebSocketSession, error) {
	headers := http.Header{}
	if c.config.APIKey != "" {
		headers.Set("Authorization", "Bearer "+c.config.APIKey)
	} else {
		secret, err := c.fetchCredential(ctx)
		if err != nil {
			return nil, err
		}
		headers.Set("Authorization", "Bearer "+secret)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HTTPClient.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.config.WebSocketURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("peer: connect: %w", err)
	}

	session := &WebSocketSession{
		conn:     conn,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
		logger:   slog.Default(),
	}
	session.control = control{send: session.sendEvent}

	go session.readLoop()
	return session, nil
}

// Events returns an iterator over inbound server events.
func (s *WebSocketSession) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.eventsCh:
				if !ok {
					return
				}
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

// SessionID returns the server-assigned session id.
func (s *WebSocketSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Close closes the connection.
func (s *WebSocketSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

// sendEvent marshals and sends one control message.
func (s *WebSocketSession) sendEvent(event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		if data, err := json.Marshal(event); err == nil {
			s.logger.Debug("peer: send", "content", truncateForLog(string(data), 500))
		}
	}
	return s.conn.WriteJSON(event)
}

// readLoop pumps inbound messages into the event channel.
func (s *WebSocketSession) readLoop() {
	defer close(s.eventsCh)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
			case s.eventsCh <- eventOrError{err: fmt.Errorf("peer: read: %w", err)}:
			}
			return
		}
		if s.logger.Enabled(context.Background(), slog.LevelDebug) {
			s.logger.Debug("peer: recv", "len", len(message), "content", truncateForLog(string(message), 1000))
		}

		event, err := parseServerEvent(message)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			case s.eventsCh <- eventOrError{err: err}:
			}
			continue
		}

		if event.Type == EventTypeSessionCreated && event.Session != nil {
			s.mu.Lock()
			s.sessionID = event.Session.ID
			s.mu.Unlock()
		}

		select {
		case <-s.closeCh:
			return
		case s.eventsCh <- eventOrError{event: event}:
		}
	}
}

var _ Session = (*WebSocketSession)(nil)
