package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/pkg/randstr"
)

type iCodeGenerator interface {
	GenerateRandomString(length int) string
}

const roomCodeLength = 6

// RoomRepo is an in-memory stand-in for the external room repository. The
// real record lives in the account/room service's relational store; the core
// only needs these few operations.
type RoomRepo struct {
	byId      map[string]*domain.Room
	byCode    map[string]string
	generator iCodeGenerator
	mu        sync.RWMutex
}

func NewRoomRepo() *RoomRepo {
	return &RoomRepo{
		byId:      make(map[string]*domain.Room),
		byCode:    make(map[string]string),
		generator: randstr.New([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")),
	}
}

type CreateRoomParams struct {
	HostId        string
	MediaRef      string
	IsPrivate     bool
	IsChatEnabled bool
}

// CreateRoom mints a room in state CREATED with a fresh unique code. In
// production room creation belongs to the external join/creation flow; this
// exists for wiring defaults and tests.
func (r *RoomRepo) CreateRoom(params *CreateRoomParams) domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = r.generator.GenerateRandomString(roomCodeLength)
		if _, ok := r.byCode[code]; !ok {
			break
		}
	}

	room := &domain.Room{
		Id:            uuid.NewString(),
		Code:          code,
		State:         domain.RoomStateCreated,
		HostId:        params.HostId,
		MediaRef:      params.MediaRef,
		IsActive:      true,
		IsChatEnabled: params.IsChatEnabled,
		IsPrivate:     params.IsPrivate,
		CreatedAt:     time.Now().UTC(),
	}
	r.byId[room.Id] = room
	r.byCode[room.Code] = room.Id

	return *room
}

func (r *RoomRepo) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}

	return *r.byId[id], nil
}

// SetState persists a state transition. Safe to call redundantly. Terminal
// states also clear is_active, matching the durable record's invariant.
func (r *RoomRepo) SetState(ctx context.Context, roomId string, state domain.RoomState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.byId[roomId]
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.State = state
	if state.IsTerminal() {
		room.IsActive = false
	}

	return nil
}

func (r *RoomRepo) SetHostDisconnectedAt(ctx context.Context, roomId string, ts *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.byId[roomId]
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.HostDisconnectedAt = ts
	return nil
}

func (r *RoomRepo) ListInGrace(ctx context.Context) ([]domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]domain.Room, 0)
	for _, room := range r.byId {
		if room.State == domain.RoomStateGrace {
			rooms = append(rooms, *room)
		}
	}

	return rooms, nil
}
