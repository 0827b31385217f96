package room

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/repository/durable/inmemory"
)

func TestSendChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	resp, err := env.svc.SendChat(ctx, &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  "  hello room  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello room", resp.Message.Message)
	assert.Equal(t, viewer.DisplayName, resp.Message.Username)
	assert.NotEmpty(t, resp.Message.Id)

	history, err := env.chat.Recent(ctx, rm.Id, 50)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello room", history[0].Message)
}

func TestSendChat_Disabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.newIdentity("host")
	rm := env.rooms.CreateRoom(&inmemory.CreateRoomParams{HostId: host.UserId, IsChatEnabled: false})
	env.participants.Approve(rm.Id, host.UserId, host.DisplayName, true)

	_, err := env.svc.SendChat(ctx, &SendChatParams{
		RoomCode: rm.Code,
		UserId:   host.UserId,
		Username: host.DisplayName,
		Message:  "hello",
	})
	assert.ErrorIs(t, err, ErrChatDisabled)
}

func TestSendChat_Empty(t *testing.T) {
	env := newTestEnv(t)
	rm, _, viewer := env.newLiveRoom(t)

	_, err := env.svc.SendChat(context.Background(), &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  "   \t  ",
	})
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestSendChat_TooLong(t *testing.T) {
	env := newTestEnv(t)
	rm, _, viewer := env.newLiveRoom(t)

	_, err := env.svc.SendChat(context.Background(), &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  strings.Repeat("a", 501),
	})
	assert.ErrorIs(t, err, ErrMessageTooLong)

	// length is counted in runes, not bytes
	_, err = env.svc.SendChat(context.Background(), &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  strings.Repeat("ю", 500),
	})
	assert.NoError(t, err)
}

func TestSendChat_Muted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	require.NoError(t, env.svc.stateRepo.AddMutedUser(ctx, rm.Id, viewer.UserId))

	_, err := env.svc.SendChat(ctx, &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  "hello",
	})
	assert.ErrorIs(t, err, ErrUserMuted)

	history, err := env.chat.Recent(ctx, rm.Id, 50)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSendChat_RateLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	for i := 0; i < 5; i++ {
		_, err := env.svc.SendChat(ctx, &SendChatParams{
			RoomCode: rm.Code,
			UserId:   viewer.UserId,
			Username: viewer.DisplayName,
			Message:  fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	// the sixth message inside the window trips the limit
	_, err := env.svc.SendChat(ctx, &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  "message 5",
	})
	assert.ErrorIs(t, err, ErrRateLimited)

	// cooldown rejects everything regardless of window contents
	_, err = env.svc.SendChat(ctx, &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  "message 6",
	})
	assert.ErrorIs(t, err, ErrRateLimited)

	// once the cooldown lapses the window has been cleared
	env.mr.FastForward(11 * time.Second)
	_, err = env.svc.SendChat(ctx, &SendChatParams{
		RoomCode: rm.Code,
		UserId:   viewer.UserId,
		Username: viewer.DisplayName,
		Message:  "message 7",
	})
	assert.NoError(t, err)

	history, err := env.chat.Recent(ctx, rm.Id, 50)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}

func TestSendChat_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm, _, viewer := env.newLiveRoom(t)

	send := func(text string) error {
		_, err := env.svc.SendChat(ctx, &SendChatParams{
			RoomCode: rm.Code,
			UserId:   viewer.UserId,
			Username: viewer.DisplayName,
			Message:  text,
		})
		return err
	}

	require.NoError(t, send("hello"))
	assert.ErrorIs(t, send("hello"), ErrDuplicateMessage)

	// only the immediately previous message counts
	require.NoError(t, send("something else"))
	require.NoError(t, send("hello"))
}
