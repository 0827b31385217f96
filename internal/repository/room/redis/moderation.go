package redis

import "context"

func (r repo) getMutedKey(roomId string) string {
	return "room:" + roomId + ":muted"
}

func (r repo) getBannedKey(roomId string) string {
	return "room:" + roomId + ":banned"
}

func (r repo) AddMutedUser(ctx context.Context, roomId, userId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	pipe := r.rc.TxPipeline()
	key := r.getMutedKey(roomId)
	pipe.SAdd(ctx, key, userId)
	pipe.Expire(ctx, key, r.presenceTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) IsUserMuted(ctx context.Context, roomId, userId string) (bool, error) {
	return r.rc.SIsMember(ctx, r.getMutedKey(roomId), userId).Result()
}

func (r repo) AddBannedUser(ctx context.Context, roomId, userId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	pipe := r.rc.TxPipeline()
	key := r.getBannedKey(roomId)
	pipe.SAdd(ctx, key, userId)
	pipe.Expire(ctx, key, r.presenceTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) IsUserBanned(ctx context.Context, roomId, userId string) (bool, error) {
	return r.rc.SIsMember(ctx, r.getBannedKey(roomId), userId).Result()
}
