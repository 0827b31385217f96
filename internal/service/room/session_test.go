package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/durable/inmemory"
	"github.com/watchroom/server/internal/repository/room"
)

func requireAdmissionCode(t *testing.T, err error, code int) {
	t.Helper()

	var admissionErr *AdmissionError
	require.ErrorAs(t, err, &admissionErr)
	assert.Equal(t, code, admissionErr.Code)
}

func TestAdmitSession_InvalidToken(t *testing.T) {
	env := newTestEnv(t)
	rm, _, _ := env.newLiveRoom(t)

	_, err := env.svc.AdmitSession(context.Background(), &AdmitSessionParams{
		Token:    "not-a-token",
		RoomCode: rm.Code,
	})
	requireAdmissionCode(t, err, CloseAuthFailure)
}

func TestAdmitSession_RoomNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.newIdentity("user")

	_, err := env.svc.AdmitSession(context.Background(), &AdmitSessionParams{
		Token:    env.token(t, user),
		RoomCode: "NOSUCH",
	})
	requireAdmissionCode(t, err, CloseRoomNotFound)
}

func TestAdmitSession_NotApproved(t *testing.T) {
	env := newTestEnv(t)
	rm, _, _ := env.newLiveRoom(t)
	stranger := env.newIdentity("stranger")

	_, err := env.svc.AdmitSession(context.Background(), &AdmitSessionParams{
		Token:    env.token(t, stranger),
		RoomCode: rm.Code,
	})
	requireAdmissionCode(t, err, CloseNotApproved)
}

func TestAdmitSession_Banned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	require.NoError(t, env.svc.stateRepo.AddBannedUser(ctx, rm.Id, viewer.UserId))

	_, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, viewer),
		RoomCode: rm.Code,
	})
	requireAdmissionCode(t, err, CloseBanned)
}

func TestAdmitSession_RoomInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	require.NoError(t, env.rooms.SetState(ctx, rm.Id, domain.RoomStateExpired))

	_, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, viewer),
		RoomCode: rm.Code,
	})
	requireAdmissionCode(t, err, CloseRoomInactive)
}

func TestAdmitSession_GraceExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	// grace flag absent and the durable timestamp lapsed: the room is dead
	lapsed := time.Now().Add(-time.Minute)
	require.NoError(t, env.rooms.SetState(ctx, rm.Id, domain.RoomStateGrace))
	require.NoError(t, env.rooms.SetHostDisconnectedAt(ctx, rm.Id, &lapsed))

	_, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, viewer),
		RoomCode: rm.Code,
	})
	requireAdmissionCode(t, err, CloseGraceExpired)

	got, err := env.rooms.GetByCode(ctx, rm.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStateExpired, got.State)
}

func TestAdmitSession_GraceRearm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	// grace flag lost but the window is still open: viewers get in and the
	// flag is re-armed for the remaining time
	recent := time.Now().Add(-5 * time.Second)
	require.NoError(t, env.rooms.SetState(ctx, rm.Id, domain.RoomStateGrace))
	require.NoError(t, env.rooms.SetHostDisconnectedAt(ctx, rm.Id, &recent))

	resp, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, viewer),
		RoomCode: rm.Code,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsHost)
	assert.Equal(t, domain.RoomStateGrace, resp.Room.State)

	inGrace, err := env.svc.stateRepo.IsInGrace(ctx, rm.Id)
	require.NoError(t, err)
	assert.True(t, inGrace)
}

func TestAdmitSession_HostReconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, host, _ := env.newLiveRoom(t)

	disconnectedAt := time.Now().Add(-5 * time.Second)
	require.NoError(t, env.rooms.SetState(ctx, rm.Id, domain.RoomStateGrace))
	require.NoError(t, env.rooms.SetHostDisconnectedAt(ctx, rm.Id, &disconnectedAt))
	require.NoError(t, env.svc.stateRepo.StartGrace(ctx, &room.StartGraceParams{RoomId: rm.Id, TTL: 30 * time.Second}))

	resp, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, host),
		RoomCode: rm.Code,
	})
	require.NoError(t, err)
	assert.True(t, resp.IsHost)
	assert.True(t, resp.HostReconnected)
	assert.Equal(t, domain.RoomStateLive, resp.Room.State)
	assert.Nil(t, resp.Room.HostDisconnectedAt)

	inGrace, err := env.svc.stateRepo.IsInGrace(ctx, rm.Id)
	require.NoError(t, err)
	assert.False(t, inGrace)
}

func TestAdmitSession_HostStartsRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newIdentity("host")
	rm := env.rooms.CreateRoom(&inmemory.CreateRoomParams{HostId: host.UserId, IsChatEnabled: true})
	env.participants.Approve(rm.Id, host.UserId, host.DisplayName, true)

	resp, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, host),
		RoomCode: rm.Code,
	})
	require.NoError(t, err)
	assert.True(t, resp.IsHost)
	assert.Equal(t, domain.RoomStateLive, resp.Room.State)
}

func TestAdmitSession_ViewerDoesNotStartRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newIdentity("host")
	viewer := env.newIdentity("viewer")
	rm := env.rooms.CreateRoom(&inmemory.CreateRoomParams{HostId: host.UserId, IsChatEnabled: true})
	env.participants.Approve(rm.Id, host.UserId, host.DisplayName, true)
	env.participants.Approve(rm.Id, viewer.UserId, viewer.DisplayName, false)

	resp, err := env.svc.AdmitSession(ctx, &AdmitSessionParams{
		Token:    env.token(t, viewer),
		RoomCode: rm.Code,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsHost)
	assert.Equal(t, domain.RoomStateCreated, resp.Room.State)
}

type failingChatRepo struct{}

func (failingChatRepo) Append(ctx context.Context, message domain.ChatMessage) error {
	return errors.New("chat store down")
}

func (failingChatRepo) Recent(ctx context.Context, roomId string, limit int) ([]domain.ChatMessage, error) {
	return nil, errors.New("chat store down")
}

type failingRoomRepo struct{}

func (failingRoomRepo) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	return domain.Room{}, errors.New("room store down")
}

func (failingRoomRepo) SetState(ctx context.Context, roomId string, state domain.RoomState) error {
	return errors.New("room store down")
}

func (failingRoomRepo) SetHostDisconnectedAt(ctx context.Context, roomId string, ts *time.Time) error {
	return errors.New("room store down")
}

func (failingRoomRepo) ListInGrace(ctx context.Context) ([]domain.Room, error) {
	return nil, errors.New("room store down")
}

func TestConnectSession_RollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	env.svc.chatRepo = failingChatRepo{}

	viewerConn := env.newConn(rm, viewer, false)
	_, err := env.svc.ConnectSession(ctx, &ConnectSessionParams{Conn: viewerConn})
	require.Error(t, err)

	// a conn never handed back must not stay in the group or keep the
	// viewer counter inflated
	assert.Empty(t, env.svc.connRepo.GetRoomConns(rm.Id))

	count, err := env.svc.stateRepo.GetViewerCount(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestDisconnectSession_ReleasesOnRoomLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	viewerConn := env.newConn(rm, viewer, false)
	_, err := env.svc.ConnectSession(ctx, &ConnectSessionParams{Conn: viewerConn})
	require.NoError(t, err)

	env.svc.roomRepo = failingRoomRepo{}

	_, err = env.svc.DisconnectSession(ctx, &DisconnectSessionParams{Conn: viewerConn})
	require.Error(t, err)

	assert.Empty(t, env.svc.connRepo.GetRoomConns(rm.Id))

	count, err := env.svc.stateRepo.GetViewerCount(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestConnectAndDisconnectSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, host, viewer := env.newLiveRoom(t)

	hostConn := env.newConn(rm, host, true)
	connectResp, err := env.svc.ConnectSession(ctx, &ConnectSessionParams{Conn: hostConn})
	require.NoError(t, err)
	assert.Len(t, connectResp.Conns, 1)
	assert.Equal(t, host.DisplayName, connectResp.Roster.Host)
	assert.ElementsMatch(t, []string{host.DisplayName, viewer.DisplayName}, connectResp.Roster.Participants)
	assert.Empty(t, connectResp.History)
	assert.Equal(t, 0, connectResp.Playback.Version)

	viewerConn := env.newConn(rm, viewer, false)
	connectResp, err = env.svc.ConnectSession(ctx, &ConnectSessionParams{Conn: viewerConn})
	require.NoError(t, err)
	assert.Len(t, connectResp.Conns, 2)

	count, err := env.svc.stateRepo.GetViewerCount(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// viewer leaving: no grace, group shrinks
	disconnectResp, err := env.svc.DisconnectSession(ctx, &DisconnectSessionParams{Conn: viewerConn})
	require.NoError(t, err)
	assert.False(t, disconnectResp.IsHost)
	assert.Zero(t, disconnectResp.GraceSeconds)
	assert.Len(t, disconnectResp.Conns, 1)

	// host leaving opens the grace window
	disconnectResp, err = env.svc.DisconnectSession(ctx, &DisconnectSessionParams{Conn: hostConn})
	require.NoError(t, err)
	assert.True(t, disconnectResp.IsHost)
	assert.Equal(t, 30, disconnectResp.GraceSeconds)

	got, err := env.rooms.GetByCode(ctx, rm.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStateGrace, got.State)
	require.NotNil(t, got.HostDisconnectedAt)

	inGrace, err := env.svc.stateRepo.IsInGrace(ctx, rm.Id)
	require.NoError(t, err)
	assert.True(t, inGrace)
}
