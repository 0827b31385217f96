package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc          *redis.Client
	logger      *slog.Logger
	presenceTTL time.Duration
}

func NewRepo(rc *redis.Client, presenceTTL time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:          rc,
		logger:      logger,
		presenceTTL: presenceTTL,
	}
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

// CleanupRoom drops every ephemeral key of a room. Called when a room expires
// or is deleted; chat anti-abuse keys are left to lapse via their own TTLs.
func (r repo) CleanupRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	return r.rc.Del(ctx,
		r.getRoomStateKey(roomId),
		r.getHostStatusKey(roomId),
		r.getParticipantsKey(roomId),
		r.getViewersKey(roomId),
		r.getGraceKey(roomId),
		r.getMutedKey(roomId),
		r.getBannedKey(roomId),
	).Err()
}
