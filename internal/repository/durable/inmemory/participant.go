package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/watchroom/server/internal/domain"
	"golang.org/x/exp/slices"
)

type participant struct {
	userId   string
	name     string
	approved bool
	isHost   bool
	joinedAt time.Time
}

type ParticipantRepo struct {
	rooms map[string][]*participant
	mu    sync.RWMutex
}

func NewParticipantRepo() *ParticipantRepo {
	return &ParticipantRepo{rooms: make(map[string][]*participant)}
}

// Approve registers an approved (room, user) pair. Pairs are unique per room.
func (r *ParticipantRepo) Approve(roomId, userId, name string, isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.rooms[roomId] {
		if p.userId == userId {
			p.approved = true
			p.name = name
			p.isHost = isHost
			return
		}
	}

	r.rooms[roomId] = append(r.rooms[roomId], &participant{
		userId:   userId,
		name:     name,
		approved: true,
		isHost:   isHost,
		joinedAt: time.Now().UTC(),
	})
}

// AddPending registers a join request that the host has not approved yet.
func (r *ParticipantRepo) AddPending(roomId, userId, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[roomId] = append(r.rooms[roomId], &participant{
		userId:   userId,
		name:     name,
		joinedAt: time.Now().UTC(),
	})
}

func (r *ParticipantRepo) IsApprovedParticipant(ctx context.Context, roomId, userId string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.rooms[roomId] {
		if p.userId == userId && p.approved {
			return true, nil
		}
	}

	return false, nil
}

func (r *ParticipantRepo) ListApprovedWithHost(ctx context.Context, roomId string) (domain.Roster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := domain.Roster{Participants: make([]string, 0)}
	for _, p := range r.rooms[roomId] {
		if !p.approved {
			continue
		}

		roster.Participants = append(roster.Participants, p.name)
		if p.isHost {
			roster.Host = p.name
		}
	}

	slices.Sort(roster.Participants)
	return roster, nil
}
