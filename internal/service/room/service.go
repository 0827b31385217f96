package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/repository/room"
)

// Close codes sent on admission rejection and force-disconnect. Stable:
// clients key reconnect behavior off these values.
const (
	CloseAuthFailure       = 4001
	CloseRoomNotFound      = 4002
	CloseNotApproved       = 4003
	CloseGraceExpired      = 4004
	CloseRoomInactive      = 4005
	CloseBanned            = 4006
	CloseForceDisconnected = 4007
)

// Authority violations: silently dropped, never surfaced to the sender.
var ErrPermissionDenied = errors.New("permission denied")

// Content violations: surfaced to the sender as an ERROR reply, nothing else
// changes.
var (
	ErrChatDisabled     = errors.New("chat is disabled in this room")
	ErrMessageEmpty     = errors.New("message is empty")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrUserMuted        = errors.New("you are muted in this room")
	ErrRateLimited      = errors.New("too many messages, slow down")
	ErrDuplicateMessage = errors.New("duplicate message")
)

// AdmissionError terminates the connection with a specific close code.
type AdmissionError struct {
	Code   int
	Reason string
}

func (e *AdmissionError) Error() string {
	return e.Reason
}

type iStateRepo interface {
	SetRoomActivity(context.Context, *room.SetRoomActivityParams) error
	SetHostStatus(context.Context, *room.SetHostStatusParams) error
	SetParticipantNames(context.Context, *room.SetParticipantNamesParams) error
	IncrementViewers(ctx context.Context, roomId string) (int64, error)
	DecrementViewers(ctx context.Context, roomId string) (int64, error)
	GetViewerCount(ctx context.Context, roomId string) (int64, error)
	StartGrace(context.Context, *room.StartGraceParams) error
	ClearGrace(ctx context.Context, roomId string) error
	IsInGrace(ctx context.Context, roomId string) (bool, error)
	AddMutedUser(ctx context.Context, roomId, userId string) error
	IsUserMuted(ctx context.Context, roomId, userId string) (bool, error)
	AddBannedUser(ctx context.Context, roomId, userId string) error
	IsUserBanned(ctx context.Context, roomId, userId string) (bool, error)
	CountChatAttempt(context.Context, *room.CountChatAttemptParams) (int64, error)
	ClearChatWindow(ctx context.Context, roomId, userId string) error
	SetCooldown(context.Context, *room.SetCooldownParams) error
	IsInCooldown(ctx context.Context, roomId, userId string) (bool, error)
	GetLastMessage(ctx context.Context, roomId, userId string) (string, error)
	SetLastMessage(context.Context, *room.SetLastMessageParams) error
	CleanupRoom(ctx context.Context, roomId string) error
}

type iConnRepo interface {
	Add(conn *connection.Conn) error
	Remove(conn *connection.Conn) error
	GetRoomConns(roomId string) []*connection.Conn
	GetConn(roomId, userId string) (*connection.Conn, error)
}

type iRoomRepo interface {
	GetByCode(ctx context.Context, code string) (domain.Room, error)
	SetState(ctx context.Context, roomId string, state domain.RoomState) error
	SetHostDisconnectedAt(ctx context.Context, roomId string, ts *time.Time) error
	ListInGrace(ctx context.Context) ([]domain.Room, error)
}

type iParticipantRepo interface {
	IsApprovedParticipant(ctx context.Context, roomId, userId string) (bool, error)
	ListApprovedWithHost(ctx context.Context, roomId string) (domain.Roster, error)
}

type iChatRepo interface {
	Append(ctx context.Context, message domain.ChatMessage) error
	Recent(ctx context.Context, roomId string, limit int) ([]domain.ChatMessage, error)
}

type iPlaybackRepo interface {
	GetOrCreate(ctx context.Context, roomId string) (domain.PlaybackState, error)
	Update(ctx context.Context, state domain.PlaybackState) error
}

type iProgressRepo interface {
	Upsert(ctx context.Context, progress domain.WatchProgress) error
}

type iIdentity interface {
	ResolveToken(token string) (domain.Identity, error)
}

type Config struct {
	GracePeriod      time.Duration
	ChatHistoryLimit int
	ChatMaxLength    int
	RateWindow       time.Duration
	RateThreshold    int
	RateCooldown     time.Duration
	DuplicateTTL     time.Duration
	DriftThreshold   float64
}

type Repos struct {
	State       iStateRepo
	Conn        iConnRepo
	Room        iRoomRepo
	Participant iParticipantRepo
	Chat        iChatRepo
	Playback    iPlaybackRepo
	Progress    iProgressRepo
}

type service struct {
	stateRepo       iStateRepo
	connRepo        iConnRepo
	roomRepo        iRoomRepo
	participantRepo iParticipantRepo
	chatRepo        iChatRepo
	playbackRepo    iPlaybackRepo
	progressRepo    iProgressRepo
	identity        iIdentity
	cfg             Config
	logger          *slog.Logger
}

func NewService(repos *Repos, identity iIdentity, cfg *Config, logger *slog.Logger) *service {
	return &service{
		stateRepo:       repos.State,
		connRepo:        repos.Conn,
		roomRepo:        repos.Room,
		participantRepo: repos.Participant,
		chatRepo:        repos.Chat,
		playbackRepo:    repos.Playback,
		progressRepo:    repos.Progress,
		identity:        identity,
		cfg:             *cfg,
		logger:          logger,
	}
}
