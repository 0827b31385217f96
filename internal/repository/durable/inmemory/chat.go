package inmemory

import (
	"context"
	"sync"

	"github.com/watchroom/server/internal/domain"
)

// ChatRepo stores persisted chat messages with a retention cap per room:
// appending beyond the cap prunes the oldest messages.
type ChatRepo struct {
	messages  map[string][]domain.ChatMessage
	retention int
	mu        sync.RWMutex
}

func NewChatRepo(retention int) *ChatRepo {
	return &ChatRepo{
		messages:  make(map[string][]domain.ChatMessage),
		retention: retention,
	}
}

func (r *ChatRepo) Append(ctx context.Context, message domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := append(r.messages[message.RoomId], message)
	if len(msgs) > r.retention {
		msgs = msgs[len(msgs)-r.retention:]
	}
	r.messages[message.RoomId] = msgs

	return nil
}

// Recent returns up to limit messages, ordered oldest to newest.
func (r *ChatRepo) Recent(ctx context.Context, roomId string, limit int) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[roomId]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
