package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// CredentialURL is the ephemeral-credential endpoint used for WebRTC
	// connections. The endpoint is called with an empty POST body and must
	// return {"client_secret": {"value": "..."}}.
	CredentialURL string

	// SignalURL is the HTTP endpoint that accepts SDP offers.
	SignalURL string

	// WebSocketURL is the WebSocket endpoint for the non-media transport.
	WebSocketURL string

	// APIKey authenticates WebSocket connections directly, bypassing the
	// ephemeral credential fetch.
	APIKey string

	// HTTPClient overrides the HTTP client for credential fetch and
	// signaling. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client builds peer sessions.
type Client struct {
	config ClientConfig
}

// NewClient creates a peer client.
func NewClient(config ClientConfig) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &Client{config: config}
}

// Session is the transport-independent peer session. Both the WebRTC and
// the WebSocket implementations satisfy it.
type Session interface {
	// UpdateSession sends a session.update control message with the new
	// behavior configuration.
	UpdateSession(config *SessionConfig) error

	// CreateItem adds a conversation item (the authoritative user
	// utterance, usually) to the peer's conversation.
	CreateItem(item *Item) error

	// ClearInput discards any uncommitted input audio buffered on the peer.
	ClearInput() error

	// CreateResponse asks the peer to produce a response to the
	// conversation as it stands.
	CreateResponse() error

	// CancelResponse cancels the in-flight response, best effort. The peer
	// may still deliver further output for it.
	CancelResponse() error

	// TruncateItem truncates a conversation item's audio at the given
	// playback offset.
	TruncateItem(itemID string, contentIndex, audioEndMs int) error

	// Events returns an iterator over inbound server events. Iteration
	// ends when the session closes or after the first error is yielded.
	Events() iter.Seq2[*ServerEvent, error]

	// SessionID returns the server-assigned session id, empty until
	// session.created is received.
	SessionID() string

	// Close tears the session down.
	Close() error
}

// credentialResponse is the ephemeral-credential endpoint response.
type credentialResponse struct {
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// fetchCredential fetches an ephemeral client secret. A response without a
// secret value is a fatal-for-this-attempt error.
func (c *Client) fetchCredential(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.CredentialURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("peer: fetch credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &Error{
			Code:       "credential_fetch_failed",
			Message:    fmt.Sprintf("credential endpoint returned %d: %s", resp.StatusCode, body),
			HTTPStatus: resp.StatusCode,
		}
	}

	var cred credentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return "", fmt.Errorf("peer: decode credential: %w", err)
	}
	if cred.ClientSecret.Value == "" {
		return "", &Error{Code: "credential_missing", Message: "credential response has no client_secret.value"}
	}
	return cred.ClientSecret.Value, nil
}

// clientEvent builds the envelope for an outbound control message.
func clientEvent(eventType string, fields map[string]any) map[string]any {
	event := map[string]any{
		"event_id": generateEventID(),
		"type":     eventType,
	}
	for k, v := range fields {
		event[k] = v
	}
	return event
}
