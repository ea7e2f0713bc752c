package peer

import "fmt"

// Error is a channel-level or API-level error from the peer.
type Error struct {
	// Code is the machine-readable error code.
	Code string `json:"code,omitzero"`

	// Message is the human-readable message.
	Message string `json:"message,omitzero"`

	// HTTPStatus is the HTTP status code, if the error came from the
	// credential or signaling endpoints.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("peer: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("peer: %s", e.Message)
}

// EventError is the error payload of an error-typed server event.
type EventError struct {
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
	EventID string `json:"event_id,omitzero"`
}

// ToError converts an EventError to an Error.
func (e *EventError) ToError() *Error {
	return &Error{Code: e.Code, Message: e.Message}
}
