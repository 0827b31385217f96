package redis

import (
	"context"

	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getGraceKey(roomId string) string {
	return "room:" + roomId + ":grace"
}

// StartGrace arms the ephemeral grace flag. Its TTL is the low-latency signal
// that the grace window is still open; the durable host_disconnected_at
// timestamp is the fallback when the flag has evaporated.
func (r repo) StartGrace(ctx context.Context, params *room.StartGraceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.rc.Set(ctx, r.getGraceKey(params.RoomId), "1", params.TTL).Err()
}

func (r repo) ClearGrace(ctx context.Context, roomId string) error {
	return r.rc.Del(ctx, r.getGraceKey(roomId)).Err()
}

func (r repo) IsInGrace(ctx context.Context, roomId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getGraceKey(roomId)).Result()
	if err != nil {
		return false, err
	}

	return res == 1, nil
}
