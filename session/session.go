// Package session tracks the lifecycle stage of each (participant, category)
// key on the client side. State transitions are pure; Tracker keeps the
// current state of every key.
package session

import (
	"errors"
	"fmt"

	"github.com/vocdoni/confidential-ballot/types"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current stage.
var ErrInvalidTransition = errors.New("invalid session transition")

// Stage is the lifecycle stage of a key.
type Stage int

const (
	Idle Stage = iota
	Encrypting
	Submitting
	Submitted
	Decrypting
	Revealed
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Encrypting:
		return "encrypting"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Decrypting:
		return "decrypting"
	case Revealed:
		return "revealed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventType identifies what happened to a key.
type EventType int

const (
	EvVote      EventType = iota // vote called
	EvEncrypted                  // ciphertext ready
	EvAcked                      // ledger acknowledged the vote
	EvReveal                     // reveal called
	EvRevealed                   // plaintext received
	EvFail                       // any failure
)

func (e EventType) String() string {
	switch e {
	case EvVote:
		return "vote"
	case EvEncrypted:
		return "encrypted"
	case EvAcked:
		return "acked"
	case EvReveal:
		return "reveal"
	case EvRevealed:
		return "revealed"
	case EvFail:
		return "fail"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Event drives a transition. Handle is set with EvEncrypted and EvAcked,
// Value with EvRevealed and Reason with EvFail.
type Event struct {
	Type   EventType
	Handle types.Handle
	Value  uint64
	Reason string
}

// Fail returns an EvFail event carrying err as reason.
func Fail(err error) Event {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Event{Type: EvFail, Reason: reason}
}

// State is the state of one key.
type State struct {
	Stage Stage `json:"stage"`
	// Reason is set in the Failed stage.
	Reason string `json:"reason,omitempty"`
	// Handle is known once the ciphertext is ready or restored from the
	// ledger.
	Handle types.Handle `json:"handle"`
	// Value is set in the Revealed stage.
	Value uint64 `json:"value,omitempty"`
	// Voted is true once the ledger acknowledged a ballot for the key. It
	// survives failures of later reveals.
	Voted bool `json:"voted"`
}

// Apply returns the state after ev, or ErrInvalidTransition. A new vote or
// reveal can start from its entry stages only, never mid-flight.
func (s State) Apply(ev Event) (State, error) {
	next := s
	switch ev.Type {
	case EvVote:
		if s.Voted || (s.Stage != Idle && s.Stage != Failed) {
			return s, s.invalid(ev)
		}
		next = State{Stage: Encrypting}
	case EvEncrypted:
		if s.Stage != Encrypting {
			return s, s.invalid(ev)
		}
		next.Stage = Submitting
		next.Handle = ev.Handle
	case EvAcked:
		if s.Stage != Submitting {
			return s, s.invalid(ev)
		}
		next.Stage = Submitted
		next.Voted = true
		if ev.Handle != (types.Handle{}) {
			next.Handle = ev.Handle
		}
	case EvReveal:
		switch {
		case s.Stage == Submitted, s.Stage == Revealed, s.Stage == Failed && s.Voted:
		default:
			return s, s.invalid(ev)
		}
		next.Stage = Decrypting
		next.Reason = ""
	case EvRevealed:
		if s.Stage != Decrypting {
			return s, s.invalid(ev)
		}
		next.Stage = Revealed
		next.Value = ev.Value
	case EvFail:
		if s.Stage != Encrypting && s.Stage != Submitting && s.Stage != Decrypting {
			return s, s.invalid(ev)
		}
		next.Stage = Failed
		next.Reason = ev.Reason
	default:
		return s, s.invalid(ev)
	}
	return next, nil
}

func (s State) invalid(ev Event) error {
	return fmt.Errorf("%w: %s in stage %s", ErrInvalidTransition, ev.Type, s.Stage)
}
