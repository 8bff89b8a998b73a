package repo

import (
	"context"
	"sync"

	"github.com/rhea-assistant/server/internal/agent/model"
)

// InMemoryCheckpointRepository keeps checkpoints in process memory. Useful
// for tests and single-node development runs; state does not survive
// restarts.
type InMemoryCheckpointRepository struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewInMemoryCheckpointRepository() *InMemoryCheckpointRepository {
	return &InMemoryCheckpointRepository{states: make(map[string][]byte)}
}

func (r *InMemoryCheckpointRepository) Load(_ context.Context, threadID string) (*model.ConversationState, error) {
	r.mu.RLock()
	raw, ok := r.states[threadID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeState(raw)
}

func (r *InMemoryCheckpointRepository) Save(_ context.Context, threadID string, state *model.ConversationState) error {
	b, err := encodeState(state)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.states[threadID] = b
	r.mu.Unlock()
	return nil
}
