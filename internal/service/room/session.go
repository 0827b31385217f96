package room

import (
	"context"
	"fmt"
	"time"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/repository/room"
)

type AdmitSessionParams struct {
	Token    string
	RoomCode string
}

type AdmitSessionResponse struct {
	User            domain.Identity
	Room            domain.Room
	IsHost          bool
	HostReconnected bool
	// GroupConns are the sockets already attached to the room at admission
	// time, used for the host-reconnected notice.
	GroupConns []*connection.Conn
}

// AdmitSession runs the admission sequence. Every rejection returns an
// *AdmissionError carrying the close code for that reason and performs no
// further steps.
func (s service) AdmitSession(ctx context.Context, params *AdmitSessionParams) (AdmitSessionResponse, error) {
	user, err := s.identity.ResolveToken(params.Token)
	if err != nil {
		return AdmitSessionResponse{}, &AdmissionError{Code: CloseAuthFailure, Reason: "authentication failed"}
	}

	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return AdmitSessionResponse{}, &AdmissionError{Code: CloseRoomNotFound, Reason: "room not found"}
	}

	banned, err := s.stateRepo.IsUserBanned(ctx, rm.Id, user.UserId)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to check ban", "room_id", rm.Id, "error", err)
	}
	if banned {
		return AdmitSessionResponse{}, &AdmissionError{Code: CloseBanned, Reason: "banned from room"}
	}

	if !rm.IsActive {
		return AdmitSessionResponse{}, &AdmissionError{Code: CloseRoomInactive, Reason: "room is not active"}
	}

	if rm.State == domain.RoomStateGrace {
		inGrace, err := s.stateRepo.IsInGrace(ctx, rm.Id)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to check grace flag", "room_id", rm.Id, "error", err)
			inGrace = false
		}

		// The flag is the fast signal; when it is absent the durable
		// timestamp decides whether the window is really over.
		if !inGrace {
			if rm.HostDisconnectedAt == nil || rm.GraceExpired(s.cfg.GracePeriod, time.Now()) {
				if err := s.expireRoom(ctx, &rm); err != nil {
					s.logger.WarnContext(ctx, "failed to expire room", "room_id", rm.Id, "error", err)
				}
				return AdmitSessionResponse{}, &AdmissionError{Code: CloseGraceExpired, Reason: "room has timed out"}
			}

			remaining := time.Until(rm.HostDisconnectedAt.Add(s.cfg.GracePeriod))
			if err := s.stateRepo.StartGrace(ctx, &room.StartGraceParams{RoomId: rm.Id, TTL: remaining}); err != nil {
				s.logger.WarnContext(ctx, "failed to re-arm grace flag", "room_id", rm.Id, "error", err)
			}
		}
	}

	resp := AdmitSessionResponse{
		User:   user,
		IsHost: user.UserId == rm.HostId,
	}

	// The host-reconnect transition runs before the approval check; the
	// reconnect notice itself goes out once admission completes. Hosts are
	// approved at room creation, so the two orderings are indistinguishable
	// to the group.
	if resp.IsHost && rm.State == domain.RoomStateGrace {
		if err := s.stateRepo.ClearGrace(ctx, rm.Id); err != nil {
			s.logger.WarnContext(ctx, "failed to clear grace flag", "room_id", rm.Id, "error", err)
		}
		if err := s.roomRepo.SetHostDisconnectedAt(ctx, rm.Id, nil); err != nil {
			return AdmitSessionResponse{}, fmt.Errorf("failed to clear host disconnect timestamp: %w", err)
		}
		rm.HostDisconnectedAt = nil

		if err := s.transition(ctx, &rm, domain.RoomStateLive); err != nil {
			return AdmitSessionResponse{}, err
		}

		resp.HostReconnected = true
		resp.GroupConns = s.connRepo.GetRoomConns(rm.Id)
	}

	approved, err := s.participantRepo.IsApprovedParticipant(ctx, rm.Id, user.UserId)
	if err != nil {
		return AdmitSessionResponse{}, fmt.Errorf("failed to check participant: %w", err)
	}
	if !approved {
		return AdmitSessionResponse{}, &AdmissionError{Code: CloseNotApproved, Reason: "not an approved participant"}
	}

	if resp.IsHost && rm.State == domain.RoomStateCreated {
		if err := s.transition(ctx, &rm, domain.RoomStateLive); err != nil {
			return AdmitSessionResponse{}, err
		}
	}

	resp.Room = rm
	return resp, nil
}

type ConnectSessionParams struct {
	Conn *connection.Conn
}

type ConnectSessionResponse struct {
	Roster   domain.Roster
	History  []domain.ChatMessage
	Playback domain.PlaybackState
	// Conns holds every socket in the room including the new one.
	Conns []*connection.Conn
}

// ConnectSession attaches an admitted socket to the room's broadcast group
// and rebuilds the presence snapshot around it. A failure after the group
// join rolls the join back: a conn never handed to the caller must not stay
// registered or keep the viewer counter inflated.
func (s service) ConnectSession(ctx context.Context, params *ConnectSessionParams) (ConnectSessionResponse, error) {
	conn := params.Conn

	rm, err := s.roomRepo.GetByCode(ctx, conn.RoomCode)
	if err != nil {
		return ConnectSessionResponse{}, err
	}

	if err := s.connRepo.Add(conn); err != nil {
		return ConnectSessionResponse{}, fmt.Errorf("failed to join broadcast group: %w", err)
	}

	if _, err := s.stateRepo.IncrementViewers(ctx, rm.Id); err != nil {
		s.logger.WarnContext(ctx, "failed to increment viewers", "room_id", rm.Id, "error", err)
	}

	rollback := func() {
		if err := s.connRepo.Remove(conn); err != nil {
			s.logger.DebugContext(ctx, "connection already removed", "room_id", rm.Id, "user_id", conn.UserId)
		}
		if _, err := s.stateRepo.DecrementViewers(ctx, rm.Id); err != nil {
			s.logger.WarnContext(ctx, "failed to decrement viewers", "room_id", rm.Id, "error", err)
		}
	}

	hostStatus := ""
	if conn.IsHost {
		hostStatus = room.HostStatusConnected
	}
	s.refreshPresence(ctx, &rm, hostStatus)

	// Roster is recomputed from the durable participant table and cached
	// into the presence store; the cache is never the source of truth.
	roster, err := s.participantRepo.ListApprovedWithHost(ctx, rm.Id)
	if err != nil {
		rollback()
		return ConnectSessionResponse{}, fmt.Errorf("failed to list participants: %w", err)
	}
	if err := s.stateRepo.SetParticipantNames(ctx, &room.SetParticipantNamesParams{
		RoomId: rm.Id,
		Names:  roster.Participants,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to cache participant names", "room_id", rm.Id, "error", err)
	}

	history, err := s.chatRepo.Recent(ctx, rm.Id, s.cfg.ChatHistoryLimit)
	if err != nil {
		rollback()
		return ConnectSessionResponse{}, fmt.Errorf("failed to load chat history: %w", err)
	}

	playback, err := s.playbackRepo.GetOrCreate(ctx, rm.Id)
	if err != nil {
		rollback()
		return ConnectSessionResponse{}, fmt.Errorf("failed to load playback state: %w", err)
	}

	return ConnectSessionResponse{
		Roster:   roster,
		History:  history,
		Playback: playback,
		Conns:    s.connRepo.GetRoomConns(rm.Id),
	}, nil
}

type DisconnectSessionParams struct {
	Conn *connection.Conn
}

type DisconnectSessionResponse struct {
	IsHost       bool
	GraceSeconds int
	Conns        []*connection.Conn
}

// DisconnectSession releases group membership and flushes a final presence
// update. Runs on every exit path, protocol errors included. The group
// removal and viewer decrement happen before the durable lookup so a room
// repository failure cannot leak either.
func (s service) DisconnectSession(ctx context.Context, params *DisconnectSessionParams) (DisconnectSessionResponse, error) {
	conn := params.Conn

	if err := s.connRepo.Remove(conn); err != nil {
		s.logger.DebugContext(ctx, "connection already removed", "room_id", conn.RoomId, "user_id", conn.UserId)
	}

	if _, err := s.stateRepo.DecrementViewers(ctx, conn.RoomId); err != nil {
		s.logger.WarnContext(ctx, "failed to decrement viewers", "room_id", conn.RoomId, "error", err)
	}

	resp := DisconnectSessionResponse{IsHost: conn.IsHost}

	rm, err := s.roomRepo.GetByCode(ctx, conn.RoomCode)
	if err != nil {
		return resp, err
	}

	hostStatus := ""
	if conn.IsHost && !rm.State.IsTerminal() {
		now := time.Now().UTC()
		if err := s.roomRepo.SetHostDisconnectedAt(ctx, rm.Id, &now); err != nil {
			return resp, fmt.Errorf("failed to set host disconnect timestamp: %w", err)
		}
		rm.HostDisconnectedAt = &now

		if err := s.transition(ctx, &rm, domain.RoomStateGrace); err != nil {
			return resp, err
		}

		if err := s.stateRepo.StartGrace(ctx, &room.StartGraceParams{
			RoomId: rm.Id,
			TTL:    s.cfg.GracePeriod,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to arm grace flag", "room_id", rm.Id, "error", err)
		}

		hostStatus = room.HostStatusDisconnected
		resp.GraceSeconds = int(s.cfg.GracePeriod.Seconds())
	}

	s.refreshPresence(ctx, &rm, hostStatus)

	resp.Conns = s.connRepo.GetRoomConns(rm.Id)
	return resp, nil
}
