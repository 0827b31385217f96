package room

import (
	"context"
	"fmt"
	"time"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/repository/room"
)

// transition moves the durable room record to target if the state machine
// allows it. Disallowed transitions are silent no-ops: callers never observe
// a rejection, only the unchanged state.
func (s service) transition(ctx context.Context, rm *domain.Room, target domain.RoomState) error {
	if !rm.State.CanTransition(target) {
		s.logger.DebugContext(ctx, "transition skipped",
			"room_id", rm.Id,
			"from", rm.State,
			"to", target,
		)
		return nil
	}

	if err := s.roomRepo.SetState(ctx, rm.Id, target); err != nil {
		return fmt.Errorf("failed to set room state: %w", err)
	}

	rm.State = target
	if target.IsTerminal() {
		rm.IsActive = false
	}

	return nil
}

// expireRoom moves a room to EXPIRED and drops its ephemeral state. The
// durable transition is authoritative; the cleanup is best-effort.
func (s service) expireRoom(ctx context.Context, rm *domain.Room) error {
	if err := s.transition(ctx, rm, domain.RoomStateExpired); err != nil {
		return err
	}

	if err := s.stateRepo.CleanupRoom(ctx, rm.Id); err != nil {
		s.logger.WarnContext(ctx, "failed to cleanup ephemeral room state", "room_id", rm.Id, "error", err)
	}

	return nil
}

// ExpireLapsedRooms is the periodic sweep: every room still in GRACE whose
// grace deadline has passed is expired. Connections also perform this check
// opportunistically at admission, so the sweep only has to catch rooms
// nobody tried to join.
func (s service) ExpireLapsedRooms(ctx context.Context) (int, error) {
	rooms, err := s.roomRepo.ListInGrace(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list rooms in grace: %w", err)
	}

	now := time.Now()
	expired := 0
	for _, rm := range rooms {
		if !rm.GraceExpired(s.cfg.GracePeriod, now) {
			continue
		}

		if err := s.expireRoom(ctx, &rm); err != nil {
			s.logger.WarnContext(ctx, "failed to expire room", "room_id", rm.Id, "error", err)
			continue
		}
		expired++
	}

	return expired, nil
}

type DeleteRoomParams struct {
	RoomCode string
	Token    string
}

type DeleteRoomResponse struct {
	Conns []*connection.Conn
}

// DeleteRoom is the operator action: any non-terminal room goes straight to
// DELETED. Live connections are told and then closed by the caller.
func (s service) DeleteRoom(ctx context.Context, params *DeleteRoomParams) (DeleteRoomResponse, error) {
	user, err := s.identity.ResolveToken(params.Token)
	if err != nil {
		return DeleteRoomResponse{}, ErrPermissionDenied
	}

	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return DeleteRoomResponse{}, err
	}

	if user.UserId != rm.HostId {
		return DeleteRoomResponse{}, ErrPermissionDenied
	}

	conns := s.connRepo.GetRoomConns(rm.Id)

	if err := s.transition(ctx, &rm, domain.RoomStateDeleted); err != nil {
		return DeleteRoomResponse{}, err
	}

	if err := s.stateRepo.CleanupRoom(ctx, rm.Id); err != nil {
		s.logger.WarnContext(ctx, "failed to cleanup ephemeral room state", "room_id", rm.Id, "error", err)
	}

	return DeleteRoomResponse{Conns: conns}, nil
}

// refreshPresence republishes the room-active snapshot and the host status.
// Ephemeral only: safe to lose, rebuilt on the next session event.
func (s service) refreshPresence(ctx context.Context, rm *domain.Room, hostStatus string) {
	if err := s.stateRepo.SetRoomActivity(ctx, &room.SetRoomActivityParams{
		RoomId:   rm.Id,
		IsActive: rm.IsActive,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to set room activity", "room_id", rm.Id, "error", err)
	}

	if hostStatus == "" {
		return
	}

	if err := s.stateRepo.SetHostStatus(ctx, &room.SetHostStatusParams{
		RoomId: rm.Id,
		Status: hostStatus,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to set host status", "room_id", rm.Id, "error", err)
	}
}
