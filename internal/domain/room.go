package domain

import (
	"errors"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

type RoomState string

const (
	RoomStateCreated RoomState = "CREATED"
	RoomStateLive    RoomState = "LIVE"
	RoomStateGrace   RoomState = "GRACE"
	RoomStateExpired RoomState = "EXPIRED"
	RoomStateDeleted RoomState = "DELETED"
)

func (s RoomState) IsTerminal() bool {
	return s == RoomStateExpired || s == RoomStateDeleted
}

var allowedTransitions = map[RoomState][]RoomState{
	RoomStateCreated: {RoomStateLive},
	RoomStateLive:    {RoomStateGrace},
	RoomStateGrace:   {RoomStateLive, RoomStateExpired},
}

// CanTransition reports whether the room state machine accepts a move from s
// to target. Terminal states accept nothing. DELETED is an operator action
// reachable from any non-terminal state and bypasses the transition table.
func (s RoomState) CanTransition(target RoomState) bool {
	if s.IsTerminal() {
		return false
	}

	if target == RoomStateDeleted {
		return true
	}

	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}

	return false
}

// Room is a snapshot of the durable room record. The room repository owns the
// record; the core only reads it and writes state/host_disconnected_at through
// the transition operations.
type Room struct {
	Id                 string
	Code               string
	State              RoomState
	HostId             string
	MediaRef           string
	IsActive           bool
	IsChatEnabled      bool
	IsPrivate          bool
	HostDisconnectedAt *time.Time
	CreatedAt          time.Time
}

// IsInGrace reports whether the grace window opened by the host disconnect is
// still running at now. This is the durable fallback for the ephemeral grace
// flag.
func (r Room) IsInGrace(gracePeriod time.Duration, now time.Time) bool {
	if r.HostDisconnectedAt == nil {
		return false
	}

	return now.Before(r.HostDisconnectedAt.Add(gracePeriod))
}

func (r Room) GraceExpired(gracePeriod time.Duration, now time.Time) bool {
	if r.HostDisconnectedAt == nil {
		return false
	}

	return !now.Before(r.HostDisconnectedAt.Add(gracePeriod))
}
