package inmemory

import (
	"context"
	"sync"

	"github.com/watchroom/server/internal/domain"
)

type progressKey struct {
	userId string
	roomId string
}

type ProgressRepo struct {
	progress map[progressKey]domain.WatchProgress
	mu       sync.RWMutex
}

func NewProgressRepo() *ProgressRepo {
	return &ProgressRepo{progress: make(map[progressKey]domain.WatchProgress)}
}

func (r *ProgressRepo) Upsert(ctx context.Context, progress domain.WatchProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress[progressKey{userId: progress.UserId, roomId: progress.RoomId}] = progress
	return nil
}

func (r *ProgressRepo) Get(ctx context.Context, userId, roomId string) (domain.WatchProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	progress, ok := r.progress[progressKey{userId: userId, roomId: roomId}]
	return progress, ok
}
