package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
)

// serveConn pumps inbound frames until the socket dies. Malformed frames and
// unknown message types are dropped without a reply; handler errors are
// logged and the loop keeps going.
func (c controller) serveConn(ctx context.Context, conn *connection.Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.logger.DebugContext(ctx, "read loop ended", "error", err)
			return
		}

		msg, err := decodeInbound(data)
		if err != nil {
			c.logger.DebugContext(ctx, "dropping inbound message", "error", err)
			continue
		}

		msgCtx := ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
		start := time.Now()
		if err := c.handleMessage(msgCtx, conn, msg); err != nil {
			c.logger.WarnContext(msgCtx, "failed to handle message", "error", err)
			continue
		}
		c.logger.DebugContext(msgCtx, "message handled", "elapsed", time.Since(start))
	}
}

func (c controller) handleMessage(ctx context.Context, conn *connection.Conn, msg inboundMessage) error {
	switch input := msg.(type) {
	case *chatMessageInput:
		return c.handleChatMessage(ctx, conn, input)
	case *playbackInput:
		return c.handlePlayback(ctx, conn, input)
	case *playerEventInput:
		return c.handlePlayerEvent(ctx, conn, input)
	case *syncCheckInput:
		return c.handleSyncCheck(ctx, conn, input)
	case *moderationInput:
		return c.handleModeration(ctx, conn, input)
	default:
		return fmt.Errorf("unhandled message type %T", msg)
	}
}

// isContentError reports whether err is a content violation: the sender gets
// an ERROR reply and nothing else changes.
func isContentError(err error) bool {
	return errors.Is(err, room.ErrChatDisabled) ||
		errors.Is(err, room.ErrMessageEmpty) ||
		errors.Is(err, room.ErrMessageTooLong) ||
		errors.Is(err, room.ErrUserMuted) ||
		errors.Is(err, room.ErrRateLimited) ||
		errors.Is(err, room.ErrDuplicateMessage)
}

func (c controller) handleChatMessage(ctx context.Context, conn *connection.Conn, input *chatMessageInput) error {
	sendChatResp, err := c.roomService.SendChat(ctx, &room.SendChatParams{
		RoomCode: conn.RoomCode,
		UserId:   conn.UserId,
		Username: conn.Username,
		Message:  input.Message,
	})
	if err != nil {
		if isContentError(err) {
			return c.writeToConn(ctx, conn, &Output{
				Type:    "ERROR",
				Payload: map[string]any{"message": err.Error()},
			})
		}
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	c.broadcast(ctx, sendChatResp.Conns, &Output{
		Type:    "CHAT_MESSAGE",
		Payload: chatMessagePayload(&sendChatResp.Message),
	}, nil)

	return nil
}

func (c controller) handlePlayback(ctx context.Context, conn *connection.Conn, input *playbackInput) error {
	updatePlaybackResp, err := c.roomService.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomCode: conn.RoomCode,
		SenderId: conn.UserId,
		Action:   input.Action,
		Time:     input.Time,
	})
	if err != nil {
		// Non-host playback commands are dropped without a reply.
		if errors.Is(err, room.ErrPermissionDenied) {
			c.logger.DebugContext(ctx, "dropping playback command from non-host", "user_id", conn.UserId)
			return nil
		}
		return fmt.Errorf("failed to update playback: %w", err)
	}

	c.broadcast(ctx, updatePlaybackResp.Conns, &Output{
		Type:    "PLAYBACK_STATE",
		Payload: playbackPayload(&updatePlaybackResp.State),
	}, nil)

	return nil
}

func (c controller) handlePlayerEvent(ctx context.Context, conn *connection.Conn, input *playerEventInput) error {
	err := c.roomService.PlayerEvent(ctx, &room.PlayerEventParams{
		RoomCode:    conn.RoomCode,
		SenderId:    conn.UserId,
		Event:       input.Data.Event,
		CurrentTime: input.Data.CurrentTime,
		Duration:    input.Data.Duration,
		Progress:    input.Data.Progress,
	})
	if err != nil {
		if errors.Is(err, room.ErrPermissionDenied) {
			c.logger.DebugContext(ctx, "dropping player event from non-host", "user_id", conn.UserId)
			return nil
		}
		return fmt.Errorf("failed to handle player event: %w", err)
	}

	return nil
}

func (c controller) handleSyncCheck(ctx context.Context, conn *connection.Conn, input *syncCheckInput) error {
	syncCheckResp, err := c.roomService.SyncCheck(ctx, &room.SyncCheckParams{
		RoomCode:   conn.RoomCode,
		ClientTime: input.ClientTime,
	})
	if err != nil {
		return fmt.Errorf("failed to sync check: %w", err)
	}

	// Corrections go to the reporting connection only.
	if syncCheckResp.Correction == nil {
		return nil
	}

	return c.writeToConn(ctx, conn, &Output{
		Type:    "SYNC_CORRECTION",
		Payload: playbackPayload(syncCheckResp.Correction),
	})
}

func (c controller) handleModeration(ctx context.Context, conn *connection.Conn, input *moderationInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return c.writeToConn(ctx, conn, &Output{
			Type:    "ERROR",
			Payload: map[string]any{"message": "invalid payload", "errors": validationErrors},
		})
	}

	params := room.ModerateUserParams{
		RoomCode: conn.RoomCode,
		SenderId: conn.UserId,
		TargetId: input.UserId,
	}

	var (
		moderateResp room.ModerateUserResponse
		err          error
	)
	switch input.Kind {
	case "MUTE_USER":
		moderateResp, err = c.roomService.MuteUser(ctx, &params)
	case "BAN_USER":
		moderateResp, err = c.roomService.BanUser(ctx, &params)
	case "KICK_USER":
		moderateResp, err = c.roomService.KickUser(ctx, &params)
	default:
		return fmt.Errorf("unhandled moderation kind %q", input.Kind)
	}
	if err != nil {
		// Moderation from a non-host is dropped without a reply.
		if errors.Is(err, room.ErrPermissionDenied) {
			c.logger.DebugContext(ctx, "dropping moderation from non-host", "user_id", conn.UserId)
			return nil
		}
		return fmt.Errorf("failed to moderate user: %w", err)
	}

	// Mute carries no group fan-out; ban and kick force-disconnect the
	// target, and the target's own teardown announces the departure.
	c.closeTarget(ctx, moderateResp.Conns, moderateResp.TargetId, room.CloseForceDisconnected, "removed by host")

	return nil
}
