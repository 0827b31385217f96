package room

import (
	"context"
	"fmt"

	"github.com/watchroom/server/internal/repository/connection"
)

type ModerateUserParams struct {
	RoomCode string
	SenderId string
	TargetId string
}

type ModerateUserResponse struct {
	TargetId string
	// Conns is the full broadcast group; the caller filters by recipient
	// identity at delivery time when a targeted close is required.
	Conns []*connection.Conn
}

// MuteUser adds the target to the room's ephemeral mute set. Host only;
// anyone else gets ErrPermissionDenied and no reply.
func (s service) MuteUser(ctx context.Context, params *ModerateUserParams) (ModerateUserResponse, error) {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return ModerateUserResponse{}, err
	}

	if params.SenderId != rm.HostId {
		return ModerateUserResponse{}, ErrPermissionDenied
	}

	if err := s.stateRepo.AddMutedUser(ctx, rm.Id, params.TargetId); err != nil {
		return ModerateUserResponse{}, fmt.Errorf("failed to mute user: %w", err)
	}

	return ModerateUserResponse{TargetId: params.TargetId}, nil
}

// BanUser adds the target to the ban set and hands back the group so the
// caller can force-disconnect the target. The ban outlives the connection:
// it is re-checked at every admission.
func (s service) BanUser(ctx context.Context, params *ModerateUserParams) (ModerateUserResponse, error) {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return ModerateUserResponse{}, err
	}

	if params.SenderId != rm.HostId {
		return ModerateUserResponse{}, ErrPermissionDenied
	}

	if err := s.stateRepo.AddBannedUser(ctx, rm.Id, params.TargetId); err != nil {
		return ModerateUserResponse{}, fmt.Errorf("failed to ban user: %w", err)
	}

	return ModerateUserResponse{
		TargetId: params.TargetId,
		Conns:    s.connRepo.GetRoomConns(rm.Id),
	}, nil
}

// KickUser force-disconnects the target without banning; the target may
// reconnect.
func (s service) KickUser(ctx context.Context, params *ModerateUserParams) (ModerateUserResponse, error) {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return ModerateUserResponse{}, err
	}

	if params.SenderId != rm.HostId {
		return ModerateUserResponse{}, ErrPermissionDenied
	}

	return ModerateUserResponse{
		TargetId: params.TargetId,
		Conns:    s.connRepo.GetRoomConns(rm.Id),
	}, nil
}
