package session

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-ballot/types"
)

// Key identifies a session.
type Key struct {
	Participant common.Address
	Category    string
}

// Tracker holds the state of every key. It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	states map[Key]State
}

// NewTracker returns an empty tracker. Unknown keys are Idle.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[Key]State)}
}

// Get returns the state of key.
func (t *Tracker) Get(key Key) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[key]
}

// Apply applies ev to the state of key and returns the new state. On error
// the state is unchanged.
func (t *Tracker) Apply(key Key, ev Event) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := t.states[key].Apply(ev)
	if err != nil {
		return t.states[key], err
	}
	t.states[key] = next
	return next, nil
}

// Restore rebuilds the state of key after a restart from the ledger and the
// local reveal cache. A key with a ballot becomes Submitted, or Revealed if
// its value is known; a key without one becomes Idle.
func (t *Tracker) Restore(key Key, handle *types.Handle, revealed *uint64) State {
	var s State
	if handle != nil {
		s = State{Stage: Submitted, Handle: *handle, Voted: true}
		if revealed != nil {
			s.Stage = Revealed
			s.Value = *revealed
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[key] = s
	return s
}

// Keys returns the keys with a known state for participant.
func (t *Tracker) Keys(participant common.Address) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var keys []Key
	for k := range t.states {
		if k.Participant == participant {
			keys = append(keys, k)
		}
	}
	return keys
}
