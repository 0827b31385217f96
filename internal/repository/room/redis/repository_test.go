package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/repository/room"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, 24*time.Hour, slog.Default()), s
}

func TestViewerCounter(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	count, err := r.GetViewerCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = r.IncrementViewers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = r.IncrementViewers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = r.DecrementViewers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// reaching zero removes the key entirely
	count, err = r.DecrementViewers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = r.GetViewerCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestGraceFlag(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	inGrace, err := r.IsInGrace(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, inGrace)

	require.NoError(t, r.StartGrace(ctx, &room.StartGraceParams{RoomId: "r1", TTL: 30 * time.Second}))

	inGrace, err = r.IsInGrace(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, inGrace)

	s.FastForward(31 * time.Second)

	inGrace, err = r.IsInGrace(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, inGrace)

	require.NoError(t, r.StartGrace(ctx, &room.StartGraceParams{RoomId: "r1", TTL: 30 * time.Second}))
	require.NoError(t, r.ClearGrace(ctx, "r1"))

	inGrace, err = r.IsInGrace(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, inGrace)
}

func TestCountChatAttempt(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	window := 3 * time.Second

	now := time.Now()
	for i := 1; i <= 5; i++ {
		count, err := r.CountChatAttempt(ctx, &room.CountChatAttemptParams{
			RoomId: "r1",
			UserId: "u1",
			At:     now,
			Window: window,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	// entries outside the window are pruned before counting
	s.FastForward(4 * time.Second)
	count, err := r.CountChatAttempt(ctx, &room.CountChatAttemptParams{
		RoomId: "r1",
		UserId: "u1",
		At:     now.Add(4 * time.Second),
		Window: window,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, r.ClearChatWindow(ctx, "r1", "u1"))
	count, err = r.CountChatAttempt(ctx, &room.CountChatAttemptParams{
		RoomId: "r1",
		UserId: "u1",
		At:     now.Add(4 * time.Second),
		Window: window,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCooldown(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	cooling, err := r.IsInCooldown(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.False(t, cooling)

	require.NoError(t, r.SetCooldown(ctx, &room.SetCooldownParams{RoomId: "r1", UserId: "u1", TTL: 10 * time.Second}))

	cooling, err = r.IsInCooldown(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.True(t, cooling)

	s.FastForward(11 * time.Second)

	cooling, err = r.IsInCooldown(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.False(t, cooling)
}

func TestLastMessage(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	last, err := r.GetLastMessage(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, r.SetLastMessage(ctx, &room.SetLastMessageParams{
		RoomId:  "r1",
		UserId:  "u1",
		Message: "hello",
		TTL:     3 * time.Second,
	}))

	last, err = r.GetLastMessage(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "hello", last)

	s.FastForward(4 * time.Second)

	last, err = r.GetLastMessage(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestModerationSets(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	muted, err := r.IsUserMuted(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.False(t, muted)

	require.NoError(t, r.AddMutedUser(ctx, "r1", "u1"))
	muted, err = r.IsUserMuted(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.True(t, muted)

	banned, err := r.IsUserBanned(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, r.AddBannedUser(ctx, "r1", "u2"))
	banned, err = r.IsUserBanned(ctx, "r1", "u2")
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestRoomActivity(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetRoomActivity(ctx, "r1")
	assert.ErrorIs(t, err, room.ErrNotFound)

	require.NoError(t, r.SetRoomActivity(ctx, &room.SetRoomActivityParams{RoomId: "r1", IsActive: true}))

	activity, err := r.GetRoomActivity(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, activity.IsActive)
}

func TestCleanupRoom(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetRoomActivity(ctx, &room.SetRoomActivityParams{RoomId: "r1", IsActive: true}))
	require.NoError(t, r.StartGrace(ctx, &room.StartGraceParams{RoomId: "r1", TTL: time.Minute}))
	require.NoError(t, r.AddBannedUser(ctx, "r1", "u1"))
	_, err := r.IncrementViewers(ctx, "r1")
	require.NoError(t, err)

	require.NoError(t, r.CleanupRoom(ctx, "r1"))

	assert.False(t, s.Exists("room:r1:state"))
	assert.False(t, s.Exists("room:r1:grace"))
	assert.False(t, s.Exists("room:r1:banned"))
	assert.False(t, s.Exists("room:r1:viewers"))
}
