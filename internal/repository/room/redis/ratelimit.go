package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getChatWindowKey(roomId, userId string) string {
	return "room:" + roomId + ":chat:" + userId + ":window"
}

func (r repo) getCooldownKey(roomId, userId string) string {
	return "room:" + roomId + ":chat:" + userId + ":cooldown"
}

func (r repo) getLastMessageKey(roomId, userId string) string {
	return "room:" + roomId + ":chat:" + userId + ":last"
}

// CountChatAttempt records one chat attempt in the sender's sliding window,
// prunes entries older than the window and returns the count including the
// new entry. Runs in a single transaction so concurrent senders cannot
// read-modify-write past each other.
func (r repo) CountChatAttempt(ctx context.Context, params *room.CountChatAttemptParams) (int64, error) {
	key := r.getChatWindowKey(params.RoomId, params.UserId)
	cutoff := params.At.Add(-params.Window).UnixMilli()

	pipe := r.rc.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(params.At.UnixMilli()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, params.Window)

	if err := r.executePipe(ctx, pipe); err != nil {
		return 0, err
	}

	return card.Val(), nil
}

func (r repo) ClearChatWindow(ctx context.Context, roomId, userId string) error {
	return r.rc.Del(ctx, r.getChatWindowKey(roomId, userId)).Err()
}

func (r repo) SetCooldown(ctx context.Context, params *room.SetCooldownParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.rc.Set(ctx, r.getCooldownKey(params.RoomId, params.UserId), "1", params.TTL).Err()
}

func (r repo) IsInCooldown(ctx context.Context, roomId, userId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getCooldownKey(roomId, userId)).Result()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}

func (r repo) GetLastMessage(ctx context.Context, roomId, userId string) (string, error) {
	msg, err := r.rc.Get(ctx, r.getLastMessageKey(roomId, userId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}

	return msg, nil
}

func (r repo) SetLastMessage(ctx context.Context, params *room.SetLastMessageParams) error {
	return r.rc.Set(ctx, r.getLastMessageKey(params.RoomId, params.UserId), params.Message, params.TTL).Err()
}
