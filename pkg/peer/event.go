package peer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Client event types (sent from client to server).
const (
	EventTypeSessionUpdate  = "session.update"
	EventTypeItemCreate     = "item.create"
	EventTypeItemTruncate   = "item.truncate"
	EventTypeInputClear     = "input_buffer.clear"
	EventTypeResponseCreate = "response.create"
	EventTypeResponseCancel = "response.cancel"
)

// Server event types (received from the peer).
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeItemCreated   = "item.created"
	EventTypeItemUpdated   = "item.updated"
	EventTypeItemCompleted = "item.completed"
	EventTypeItemTruncated = "item.truncated"
	EventTypeItemEnded     = "item.ended"

	// EventTypeTranscriptionCompleted carries the peer's own transcription
	// of committed user audio.
	EventTypeTranscriptionCompleted = "transcription.completed"

	EventTypeResponseDelta = "response.delta"
	EventTypeResponseDone  = "response.done"
	EventTypeAudioDelta    = "audio.delta"
)

// ServerEvent is one inbound event from the peer. The struct is a flat
// union over all event types; which fields are set depends on Type.
type ServerEvent struct {
	// Type discriminates the event.
	Type string `json:"type"`

	// EventID is the unique identifier of this event.
	EventID string `json:"event_id,omitzero"`

	// Session is set for session.created / session.updated.
	Session *SessionInfo `json:"session,omitzero"`

	// Item is set for item.* lifecycle events.
	Item *Item `json:"item,omitzero"`

	// ItemID references an item for transcription.completed, audio.delta,
	// item.truncated and item.ended.
	ItemID string `json:"item_id,omitzero"`

	// Delta carries incremental text for response.delta, or base64 audio
	// for audio.delta.
	Delta string `json:"delta,omitzero"`

	// Transcript is the completed transcription text.
	Transcript string `json:"transcript,omitzero"`

	// ContentIndex is the content part index for truncation.
	ContentIndex int `json:"content_index,omitzero"`

	// AudioEndMs is the audio end offset for item.truncated.
	AudioEndMs int `json:"audio_end_ms,omitzero"`

	// Err is set for error events.
	Err *EventError `json:"error,omitzero"`

	// Audio holds decoded audio bytes for audio.delta, populated after
	// parsing; the wire carries base64 in Delta.
	Audio []byte `json:"-"`

	// Raw is the original JSON message.
	Raw []byte `json:"-"`
}

// parseServerEvent parses a raw JSON message into a ServerEvent.
func parseServerEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("peer: parse event: %w", err)
	}
	event.Raw = message

	if event.Type == EventTypeAudioDelta && event.Delta != "" {
		decoded, err := base64.StdEncoding.DecodeString(event.Delta)
		if err != nil {
			return nil, fmt.Errorf("peer: decode audio delta: %w", err)
		}
		event.Audio = decoded
	}
	return &event, nil
}

// eventOrError is the internal event-channel element.
type eventOrError struct {
	event *ServerEvent
	err   error
}

// generateEventID returns a short unique event id.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}
