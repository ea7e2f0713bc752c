package transcript

import "encoding/json"

// Status is the lifecycle status of a ledger entry.
//
// Status is monotonic: an entry only moves forward through
// Pending → InProgress → Done. Error is terminal and reachable from any
// state. Done is terminal except that content may still be corrected once
// post-hoc (see Ledger.Replace).
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusDone
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "pending":
		*s = StatusPending
	case "in_progress":
		*s = StatusInProgress
	case "done":
		*s = StatusDone
	case "error":
		*s = StatusError
	default:
		*s = StatusPending
	}
	return nil
}

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// canTransition reports whether moving from s to next respects monotonicity.
func (s Status) canTransition(next Status) bool {
	if next == StatusError {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next > s
}

// Role identifies who a ledger entry belongs to.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
	// RoleBreadcrumb marks system notices (connection lost, remote errors)
	// that are shown inline with the conversation.
	RoleBreadcrumb
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleBreadcrumb:
		return "breadcrumb"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Role) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "user":
		*r = RoleUser
	case "assistant":
		*r = RoleAssistant
	case "breadcrumb":
		*r = RoleBreadcrumb
	default:
		*r = RoleUser
	}
	return nil
}
