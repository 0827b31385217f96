package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/validator"
)

type iRoomService interface {
	AdmitSession(context.Context, *room.AdmitSessionParams) (room.AdmitSessionResponse, error)
	ConnectSession(context.Context, *room.ConnectSessionParams) (room.ConnectSessionResponse, error)
	DisconnectSession(context.Context, *room.DisconnectSessionParams) (room.DisconnectSessionResponse, error)
	SendChat(context.Context, *room.SendChatParams) (room.SendChatResponse, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	SyncCheck(context.Context, *room.SyncCheckParams) (room.SyncCheckResponse, error)
	PlayerEvent(context.Context, *room.PlayerEventParams) error
	MuteUser(context.Context, *room.ModerateUserParams) (room.ModerateUserResponse, error)
	BanUser(context.Context, *room.ModerateUserParams) (room.ModerateUserResponse, error)
	KickUser(context.Context, *room.ModerateUserParams) (room.ModerateUserResponse, error)
	DeleteRoom(context.Context, *room.DeleteRoomParams) (room.DeleteRoomResponse, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
}

func (c controller) generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}
