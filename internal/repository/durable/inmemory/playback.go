package inmemory

import (
	"context"
	"sync"

	"github.com/watchroom/server/internal/domain"
)

// PlaybackRepo holds the durable playback state, one row per room, created
// lazily on first access.
type PlaybackRepo struct {
	states map[string]domain.PlaybackState
	mu     sync.RWMutex
}

func NewPlaybackRepo() *PlaybackRepo {
	return &PlaybackRepo{states: make(map[string]domain.PlaybackState)}
}

func (r *PlaybackRepo) GetOrCreate(ctx context.Context, roomId string) (domain.PlaybackState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[roomId]
	if !ok {
		state = domain.PlaybackState{RoomId: roomId}
		r.states[roomId] = state
	}

	return state, nil
}

func (r *PlaybackRepo) Update(ctx context.Context, state domain.PlaybackState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.RoomId] = state
	return nil
}
