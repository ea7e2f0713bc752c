package recognize

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voicebridge/voicebridge/pkg/langid"
)

// Cloud is a Recognizer backed by a cloud streaming-recognition service
// speaking JSON over WebSocket.
type Cloud struct {
	url     string
	apiKey  string
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closeCh chan struct{}
}

// NewCloud creates a cloud recognizer. handler receives every interim and
// final result.
func NewCloud(url, apiKey string, handler Handler) *Cloud {
	return &Cloud{
		url:     url,
		apiKey:  apiKey,
		handler: handler,
		logger:  slog.Default(),
	}
}

// startRequest is the session-opening frame.
type startRequest struct {
	Type   string `json:"type"`
	Locale string `json:"locale"`
	Reset  bool   `json:"reset"`
	APIKey string `json:"api_key,omitzero"`
}

// resultFrame is one inbound recognition frame.
type resultFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Language string `json:"language"`
	IsFinal  bool   `json:"is_final"`
	Message  string `json:"message,omitzero"`
}

// Start opens the recognition stream. A previous stream, if still open,
// is stopped first.
func (c *Cloud) Start(ctx context.Context, locale string, reset bool) error {
	c.Stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("recognize: connect: %w", err)
	}

	req := startRequest{Type: "start", Locale: locale, Reset: reset, APIKey: c.apiKey}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("recognize: send start: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closeCh = make(chan struct{})
	closeCh := c.closeCh
	c.mu.Unlock()

	go c.receiveLoop(conn, closeCh)
	return nil
}

// WriteAudio streams one chunk of capture audio into the open session.
func (c *Cloud) WriteAudio(pcm []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("recognize: not started")
	}
	return conn.WriteJSON(map[string]any{
		"type":  "audio",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
}

// Stop ends the session. Stopping an already-stopped recognizer is a no-op.
func (c *Cloud) Stop() error {
	c.mu.Lock()
	conn := c.conn
	closeCh := c.closeCh
	c.conn = nil
	c.closeCh = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	// Best effort: tell the service to flush the final result, then close.
	_ = conn.WriteJSON(map[string]any{"type": "stop"})
	close(closeCh)
	return conn.Close()
}

// receiveLoop reads frames until the connection drops or Stop is called.
func (c *Cloud) receiveLoop(conn *websocket.Conn, closeCh chan struct{}) {
	for {
		var frame resultFrame
		if err := conn.ReadJSON(&frame); err != nil {
			select {
			case <-closeCh:
			default:
				c.logger.Warn("recognize: stream closed", "error", err)
			}
			return
		}

		switch frame.Type {
		case "result":
			c.handler(Result{
				Text:     frame.Text,
				Language: langid.Tag(frame.Language),
				Final:    frame.IsFinal,
			})
		case "error":
			c.logger.Warn("recognize: service error", "message", frame.Message)
		default:
			c.logger.Debug("recognize: unknown frame", "type", frame.Type)
		}
	}
}

var (
	_ Recognizer  = (*Cloud)(nil)
	_ AudioWriter = (*Cloud)(nil)
)
