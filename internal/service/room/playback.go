package room

import (
	"context"
	"fmt"
	"math"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
)

type PlaybackAction string

const (
	PlaybackActionPlay  PlaybackAction = "PLAY"
	PlaybackActionPause PlaybackAction = "PAUSE"
	PlaybackActionSeek  PlaybackAction = "SEEK"
)

type UpdatePlaybackParams struct {
	RoomCode string
	SenderId string
	Action   PlaybackAction
	Time     float64
}

type UpdatePlaybackResponse struct {
	State domain.PlaybackState
	Conns []*connection.Conn
}

// UpdatePlayback applies a host playback command. Non-host senders get
// ErrPermissionDenied, which the caller drops without a reply. Every
// accepted mutation bumps the version by exactly 1.
func (s service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return UpdatePlaybackResponse{}, err
	}

	if params.SenderId != rm.HostId {
		return UpdatePlaybackResponse{}, ErrPermissionDenied
	}

	state, err := s.playbackRepo.GetOrCreate(ctx, rm.Id)
	if err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to load playback state: %w", err)
	}

	state.IsPlaying = params.Action == PlaybackActionPlay
	state.CurrentTime = params.Time
	state.Version++

	if err := s.playbackRepo.Update(ctx, state); err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to update playback state: %w", err)
	}

	return UpdatePlaybackResponse{
		State: state,
		Conns: s.connRepo.GetRoomConns(rm.Id),
	}, nil
}

type SyncCheckParams struct {
	RoomCode   string
	ClientTime float64
}

type SyncCheckResponse struct {
	// Correction is nil when the client is within the drift threshold.
	Correction *domain.PlaybackState
}

// SyncCheck compares the client's perceived position against the
// authoritative one. Corrections go to the reporting connection only; there
// is never a broadcast.
func (s service) SyncCheck(ctx context.Context, params *SyncCheckParams) (SyncCheckResponse, error) {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return SyncCheckResponse{}, err
	}

	state, err := s.playbackRepo.GetOrCreate(ctx, rm.Id)
	if err != nil {
		return SyncCheckResponse{}, fmt.Errorf("failed to load playback state: %w", err)
	}

	if math.Abs(state.CurrentTime-params.ClientTime) <= s.cfg.DriftThreshold {
		return SyncCheckResponse{}, nil
	}

	return SyncCheckResponse{Correction: &state}, nil
}

const (
	PlayerEventEnded      = "ended"
	PlayerEventTimeUpdate = "timeupdate"
	PlayerEventSeeked     = "seeked"
	PlayerEventPause      = "pause"
)

type PlayerEventParams struct {
	RoomCode    string
	SenderId    string
	Event       string
	CurrentTime float64
	Duration    float64
	Progress    float64
}

// PlayerEvent handles host player telemetry and delegates bookkeeping to the
// watch-progress collaborator. "ended" forces progress to 100% and marks
// completion; the other events update progress non-terminally.
func (s service) PlayerEvent(ctx context.Context, params *PlayerEventParams) error {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return err
	}

	if params.SenderId != rm.HostId {
		return ErrPermissionDenied
	}

	progress := domain.WatchProgress{
		UserId:      params.SenderId,
		RoomId:      rm.Id,
		MediaRef:    rm.MediaRef,
		Position:    params.CurrentTime,
		Duration:    params.Duration,
		ProgressPct: params.Progress,
	}

	switch params.Event {
	case PlayerEventEnded:
		progress.Position = params.Duration
		progress.ProgressPct = 100
		progress.Completed = true
	case PlayerEventTimeUpdate, PlayerEventSeeked, PlayerEventPause:
	default:
		s.logger.DebugContext(ctx, "ignoring unknown player event", "event", params.Event)
		return nil
	}

	if err := s.progressRepo.Upsert(ctx, progress); err != nil {
		return fmt.Errorf("failed to upsert watch progress: %w", err)
	}

	return nil
}
