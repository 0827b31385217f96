package domain

import "time"

// Identity is what the external auth provider resolves a credential token to.
type Identity struct {
	UserId      string
	DisplayName string
	IsGuest     bool
}

type ChatMessage struct {
	Id        string
	RoomId    string
	UserId    string
	Username  string
	Message   string
	CreatedAt time.Time
}

// PlaybackState is the authoritative playback clock of a room. Version starts
// at 0 and increments by exactly 1 on every accepted host mutation; it never
// decreases.
type PlaybackState struct {
	RoomId      string
	IsPlaying   bool
	CurrentTime float64
	Version     int
}

type Roster struct {
	Participants []string
	Host         string
}

type WatchProgress struct {
	UserId      string
	RoomId      string
	MediaRef    string
	Position    float64
	Duration    float64
	ProgressPct float64
	Completed   bool
}
