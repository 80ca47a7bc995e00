package conversation

import (
	"context"
	"sync"
	"time"
)

// Step names the question the assistant is currently waiting on.
type Step string

const (
	StepAwaitingName      Step = "awaiting_name"
	StepAwaitingProcedure Step = "awaiting_procedure"
	StepAwaitingDate      Step = "awaiting_date"
	StepAwaitingSlot      Step = "awaiting_slot"
)

// State is the in-progress booking dialogue for one client. A completed
// booking never lingers here: confirmation deletes the state, and the
// chosen slot lives only on the persisted booking.
type State struct {
	ClientID  string    `json:"client_id"`
	Step      Step      `json:"step"`
	Name      string    `json:"name,omitempty"`
	Procedure string    `json:"procedure,omitempty"`
	Date      string    `json:"date,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateStore keeps dialogue state keyed by exact client id.
type StateStore interface {
	Get(ctx context.Context, clientID string) (State, bool, error)
	Put(ctx context.Context, state State) error
	Delete(ctx context.Context, clientID string) error
}

// MemoryStateStore is a map-backed StateStore for tests and single-node runs.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]State)}
}

func (s *MemoryStateStore) Get(_ context.Context, clientID string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[clientID]
	return state, ok, nil
}

func (s *MemoryStateStore) Put(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ClientID] = state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, clientID)
	return nil
}

var _ StateStore = (*MemoryStateStore)(nil)
