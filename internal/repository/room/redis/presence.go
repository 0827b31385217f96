package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getRoomStateKey(roomId string) string {
	return "room:" + roomId + ":state"
}

func (r repo) getHostStatusKey(roomId string) string {
	return "room:" + roomId + ":host_status"
}

func (r repo) getParticipantsKey(roomId string) string {
	return "room:" + roomId + ":participants"
}

func (r repo) getViewersKey(roomId string) string {
	return "room:" + roomId + ":viewers"
}

func (r repo) SetRoomActivity(ctx context.Context, params *room.SetRoomActivityParams) error {
	payload, err := json.Marshal(room.RoomActivity{
		IsActive:  params.IsActive,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal room activity: %w", err)
	}

	return r.rc.Set(ctx, r.getRoomStateKey(params.RoomId), payload, r.presenceTTL).Err()
}

func (r repo) GetRoomActivity(ctx context.Context, roomId string) (room.RoomActivity, error) {
	raw, err := r.rc.Get(ctx, r.getRoomStateKey(roomId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return room.RoomActivity{}, room.ErrNotFound
		}
		return room.RoomActivity{}, fmt.Errorf("failed to get room activity: %w", err)
	}

	var activity room.RoomActivity
	if err := json.Unmarshal([]byte(raw), &activity); err != nil {
		return room.RoomActivity{}, fmt.Errorf("failed to unmarshal room activity: %w", err)
	}

	return activity, nil
}

func (r repo) SetHostStatus(ctx context.Context, params *room.SetHostStatusParams) error {
	payload, err := json.Marshal(room.HostStatus{
		Status:    params.Status,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal host status: %w", err)
	}

	return r.rc.Set(ctx, r.getHostStatusKey(params.RoomId), payload, r.presenceTTL).Err()
}

func (r repo) GetHostStatus(ctx context.Context, roomId string) (room.HostStatus, error) {
	raw, err := r.rc.Get(ctx, r.getHostStatusKey(roomId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return room.HostStatus{Status: room.HostStatusAbsent}, nil
		}
		return room.HostStatus{}, fmt.Errorf("failed to get host status: %w", err)
	}

	var status room.HostStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return room.HostStatus{}, fmt.Errorf("failed to unmarshal host status: %w", err)
	}

	return status, nil
}

func (r repo) SetParticipantNames(ctx context.Context, params *room.SetParticipantNamesParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getParticipantsKey(params.RoomId)

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, key)
	if len(params.Names) > 0 {
		members := make([]any, 0, len(params.Names))
		for _, name := range params.Names {
			members = append(members, name)
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, r.presenceTTL)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set participant names: %w", err)
	}

	return nil
}

func (r repo) GetParticipantNames(ctx context.Context, roomId string) ([]string, error) {
	names, err := r.rc.SMembers(ctx, r.getParticipantsKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participant names: %w", err)
	}

	return names, nil
}

func (r repo) IncrementViewers(ctx context.Context, roomId string) (int64, error) {
	return r.rc.Incr(ctx, r.getViewersKey(roomId)).Result()
}

// DecrementViewers drops the counter key entirely once it reaches zero so an
// idle room leaves nothing behind.
func (r repo) DecrementViewers(ctx context.Context, roomId string) (int64, error) {
	key := r.getViewersKey(roomId)
	count, err := r.rc.Decr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if count <= 0 {
		if err := r.rc.Del(ctx, key).Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}

	return count, nil
}

func (r repo) GetViewerCount(ctx context.Context, roomId string) (int64, error) {
	count, err := r.rc.Get(ctx, r.getViewersKey(roomId)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	return count, nil
}
