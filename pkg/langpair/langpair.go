// Package langpair tracks which of two spoken languages is "main" and which
// is "target" for a translation session.
//
// The state machine starts uninitialized. The first classified utterance
// fixes the initial pair; after that every classification either swaps the
// direction, confirms it, or replaces the target with a newly heard third
// language. The exact boundary between swapping and overriding drifted in
// earlier revisions of this behavior, so it is policy-configurable rather
// than hard-coded.
package langpair

import "github.com/voicebridge/voicebridge/pkg/langid"

// Pair is a main/target language assignment.
type Pair struct {
	Main   langid.Tag
	Target langid.Tag
}

// Zero reports whether the pair is still unset.
func (p Pair) Zero() bool { return p.Main == langid.Unknown && p.Target == langid.Unknown }

// Change describes what a classification did to the state.
type Change int

const (
	// ChangeNone means the detected language matched main (or was Unknown).
	ChangeNone Change = iota
	// ChangeInitialized means the first utterance fixed the initial pair.
	ChangeInitialized
	// ChangeSwapped means main and target traded places.
	ChangeSwapped
	// ChangeTarget means a third language replaced the target.
	ChangeTarget
)

// String returns the string representation of the change.
func (c Change) String() string {
	switch c {
	case ChangeInitialized:
		return "initialized"
	case ChangeSwapped:
		return "swapped"
	case ChangeTarget:
		return "target_replaced"
	default:
		return "none"
	}
}

// Policy configures the transition rules.
type Policy struct {
	// DefaultMain and DefaultTarget form the system fallback pair used on
	// first-utterance initialization.
	DefaultMain   langid.Tag
	DefaultTarget langid.Tag

	// SwapOnAnyNew, when true, swaps direction on any language that is not
	// the current main, instead of only on the current target (a third
	// language then becomes the new main rather than the new target).
	SwapOnAnyNew bool
}

// DefaultPolicy is the standard policy: swap only when the current target
// is detected, override the target on a third language.
var DefaultPolicy = Policy{
	DefaultMain:   langid.English,
	DefaultTarget: langid.Chinese,
}

// State is the language-pair state machine.
//
// State is not safe for concurrent use. The owning session serializes
// Apply calls in utterance order; see the coordinator's sequence tokens.
type State struct {
	policy Policy
	pair   Pair
	first  bool
}

// New creates an uninitialized State with the given policy. Zero-value
// policy fields fall back to DefaultPolicy's pair.
func New(policy Policy) *State {
	if policy.DefaultMain == langid.Unknown {
		policy.DefaultMain = DefaultPolicy.DefaultMain
	}
	if policy.DefaultTarget == langid.Unknown {
		policy.DefaultTarget = DefaultPolicy.DefaultTarget
	}
	return &State{policy: policy, first: true}
}

// Pair returns the current assignment. Zero until initialized.
func (s *State) Pair() Pair { return s.pair }

// DefaultMain returns the policy's fallback main language, used for
// recognition before the first utterance fixes the pair.
func (s *State) DefaultMain() langid.Tag { return s.policy.DefaultMain }

// FirstUtterance reports whether no utterance has been classified yet.
func (s *State) FirstUtterance() bool { return s.first }

// Apply feeds one classification result into the machine and returns what
// changed. Unknown never changes state.
//
// Exactly one of main/target is rewritten per call, except first-utterance
// initialization which sets both. Initialization happens exactly once per
// session.
func (s *State) Apply(d langid.Tag) Change {
	if d == langid.Unknown {
		return ChangeNone
	}

	if s.first {
		s.first = false
		s.pair.Main = d
		// The fallback target must differ from the detected language: when
		// the speaker opens in the default target language, translate back
		// into the default main instead.
		if d == s.policy.DefaultTarget {
			s.pair.Target = s.policy.DefaultMain
		} else {
			s.pair.Target = s.policy.DefaultTarget
		}
		return ChangeInitialized
	}

	switch {
	case d == s.pair.Main:
		return ChangeNone
	case d == s.pair.Target:
		s.pair.Main, s.pair.Target = s.pair.Target, s.pair.Main
		return ChangeSwapped
	case s.policy.SwapOnAnyNew:
		s.pair.Target = s.pair.Main
		s.pair.Main = d
		return ChangeSwapped
	default:
		// Third language: main is sticky, the target follows the new voice.
		s.pair.Target = d
		return ChangeTarget
	}
}
