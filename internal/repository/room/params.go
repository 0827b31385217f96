package room

import "time"

const (
	HostStatusConnected    = "connected"
	HostStatusDisconnected = "disconnected"
	HostStatusAbsent       = "absent"
)

// RoomActivity is the cached room-active snapshot. It carries no durability
// guarantee; the durable room record stays authoritative.
type RoomActivity struct {
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type HostStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SetRoomActivityParams struct {
	RoomId   string
	IsActive bool
}

type SetHostStatusParams struct {
	RoomId string
	Status string
}

type SetParticipantNamesParams struct {
	RoomId string
	Names  []string
}

type StartGraceParams struct {
	RoomId string
	TTL    time.Duration
}

type CountChatAttemptParams struct {
	RoomId string
	UserId string
	At     time.Time
	Window time.Duration
}

type SetCooldownParams struct {
	RoomId string
	UserId string
	TTL    time.Duration
}

type SetLastMessageParams struct {
	RoomId  string
	UserId  string
	Message string
	TTL     time.Duration
}
