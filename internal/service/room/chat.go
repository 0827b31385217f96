package room

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/repository/room"
)

type SendChatParams struct {
	RoomCode string
	UserId   string
	Username string
	Message  string
}

type SendChatResponse struct {
	Message domain.ChatMessage
	Conns   []*connection.Conn
}

// SendChat validates, persists and prepares a chat message for fan-out.
// Content violations come back as the Err* sentinels; the caller replies to
// the sender only. Rejections never touch playback state or persisted chat.
//
// Rate limiting degrades open when the ephemeral store is unreachable: a
// cache outage must not silence every room, so failures are logged loudly
// and the message goes through. Durable append failures stay fatal.
func (s service) SendChat(ctx context.Context, params *SendChatParams) (SendChatResponse, error) {
	rm, err := s.roomRepo.GetByCode(ctx, params.RoomCode)
	if err != nil {
		return SendChatResponse{}, err
	}

	if !rm.IsChatEnabled {
		return SendChatResponse{}, ErrChatDisabled
	}

	text := strings.TrimSpace(params.Message)
	if text == "" {
		return SendChatResponse{}, ErrMessageEmpty
	}

	if utf8.RuneCountInString(text) > s.cfg.ChatMaxLength {
		return SendChatResponse{}, ErrMessageTooLong
	}

	muted, err := s.stateRepo.IsUserMuted(ctx, rm.Id, params.UserId)
	if err != nil {
		s.logger.WarnContext(ctx, "mute check unavailable, failing open", "room_id", rm.Id, "error", err)
	}
	if muted {
		return SendChatResponse{}, ErrUserMuted
	}

	if err := s.checkRateLimit(ctx, rm.Id, params.UserId); err != nil {
		return SendChatResponse{}, err
	}

	if err := s.checkDuplicate(ctx, rm.Id, params.UserId, text); err != nil {
		return SendChatResponse{}, err
	}

	message := domain.ChatMessage{
		Id:        uuid.NewString(),
		RoomId:    rm.Id,
		UserId:    params.UserId,
		Username:  params.Username,
		Message:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.chatRepo.Append(ctx, message); err != nil {
		return SendChatResponse{}, fmt.Errorf("failed to persist chat message: %w", err)
	}

	return SendChatResponse{
		Message: message,
		Conns:   s.connRepo.GetRoomConns(rm.Id),
	}, nil
}

// checkRateLimit applies the sliding window. During cooldown every attempt
// is rejected outright without re-evaluating the window; crossing the
// threshold clears the window and arms the cooldown.
func (s service) checkRateLimit(ctx context.Context, roomId, userId string) error {
	cooling, err := s.stateRepo.IsInCooldown(ctx, roomId, userId)
	if err != nil {
		s.logger.WarnContext(ctx, "cooldown check unavailable, failing open", "room_id", roomId, "error", err)
		return nil
	}
	if cooling {
		return ErrRateLimited
	}

	count, err := s.stateRepo.CountChatAttempt(ctx, &room.CountChatAttemptParams{
		RoomId: roomId,
		UserId: userId,
		At:     time.Now(),
		Window: s.cfg.RateWindow,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "rate window unavailable, failing open", "room_id", roomId, "error", err)
		return nil
	}

	if count > int64(s.cfg.RateThreshold) {
		if err := s.stateRepo.SetCooldown(ctx, &room.SetCooldownParams{
			RoomId: roomId,
			UserId: userId,
			TTL:    s.cfg.RateCooldown,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to set cooldown", "room_id", roomId, "error", err)
		}
		if err := s.stateRepo.ClearChatWindow(ctx, roomId, userId); err != nil {
			s.logger.WarnContext(ctx, "failed to clear chat window", "room_id", roomId, "error", err)
		}

		return ErrRateLimited
	}

	return nil
}

// checkDuplicate compares against only the immediately previous message;
// any different text resets the cache to the new text.
func (s service) checkDuplicate(ctx context.Context, roomId, userId, text string) error {
	last, err := s.stateRepo.GetLastMessage(ctx, roomId, userId)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate check unavailable, failing open", "room_id", roomId, "error", err)
		return nil
	}
	if last != "" && last == text {
		return ErrDuplicateMessage
	}

	if err := s.stateRepo.SetLastMessage(ctx, &room.SetLastMessageParams{
		RoomId:  roomId,
		UserId:  userId,
		Message: text,
		TTL:     s.cfg.DuplicateTTL,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to cache last message", "room_id", roomId, "error", err)
	}

	return nil
}
