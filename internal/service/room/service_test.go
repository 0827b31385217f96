package room

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	connInmemory "github.com/watchroom/server/internal/repository/connection/inmemory"
	"github.com/watchroom/server/internal/repository/durable/inmemory"
	roomRedis "github.com/watchroom/server/internal/repository/room/redis"
	"github.com/watchroom/server/internal/service/auth"
)

const testSecret = "test-secret"

type testEnv struct {
	svc          *service
	mr           *miniredis.Miniredis
	rooms        *inmemory.RoomRepo
	participants *inmemory.ParticipantRepo
	chat         *inmemory.ChatRepo
	playback     *inmemory.PlaybackRepo
	progress     *inmemory.ProgressRepo
	auth         *auth.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.Default()
	env := &testEnv{
		mr:           s,
		rooms:        inmemory.NewRoomRepo(),
		participants: inmemory.NewParticipantRepo(),
		chat:         inmemory.NewChatRepo(200),
		playback:     inmemory.NewPlaybackRepo(),
		progress:     inmemory.NewProgressRepo(),
		auth:         auth.NewProvider(testSecret),
	}

	env.svc = NewService(&Repos{
		State:       roomRedis.NewRepo(rc, 24*time.Hour, logger),
		Conn:        connInmemory.NewRepo(logger),
		Room:        env.rooms,
		Participant: env.participants,
		Chat:        env.chat,
		Playback:    env.playback,
		Progress:    env.progress,
	}, env.auth, &Config{
		GracePeriod:      30 * time.Second,
		ChatHistoryLimit: 50,
		ChatMaxLength:    500,
		RateWindow:       3 * time.Second,
		RateThreshold:    5,
		RateCooldown:     10 * time.Second,
		DuplicateTTL:     3 * time.Second,
		DriftThreshold:   2,
	}, logger)

	return env
}

func (e *testEnv) token(t *testing.T, user domain.Identity) string {
	t.Helper()

	token, err := e.auth.IssueToken(user, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) newIdentity(name string) domain.Identity {
	return domain.Identity{UserId: uuid.NewString(), DisplayName: name}
}

// newLiveRoom creates a room, approves the host and a viewer, and moves the
// room to LIVE.
func (e *testEnv) newLiveRoom(t *testing.T) (domain.Room, domain.Identity, domain.Identity) {
	t.Helper()

	host := e.newIdentity("host")
	viewer := e.newIdentity("viewer")

	rm := e.rooms.CreateRoom(&inmemory.CreateRoomParams{
		HostId:        host.UserId,
		MediaRef:      "media-1",
		IsChatEnabled: true,
	})
	e.participants.Approve(rm.Id, host.UserId, host.DisplayName, true)
	e.participants.Approve(rm.Id, viewer.UserId, viewer.DisplayName, false)

	require.NoError(t, e.rooms.SetState(context.Background(), rm.Id, domain.RoomStateLive))
	rm.State = domain.RoomStateLive

	return rm, host, viewer
}

func (e *testEnv) newConn(rm domain.Room, user domain.Identity, isHost bool) *connection.Conn {
	return connection.NewConn(&websocket.Conn{}, user.UserId, user.DisplayName, rm.Id, rm.Code, isHost)
}
