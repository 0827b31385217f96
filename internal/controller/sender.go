package controller

import (
	"context"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func chatMessagePayload(message *domain.ChatMessage) map[string]any {
	return map[string]any{
		"user":       message.Username,
		"message":    message.Message,
		"created_at": message.CreatedAt,
	}
}

func playbackPayload(state *domain.PlaybackState) map[string]any {
	return map[string]any{
		"is_playing": state.IsPlaying,
		"time":       state.CurrentTime,
		"version":    state.Version,
	}
}

func (c controller) writeToConn(ctx context.Context, conn *connection.Conn, out *Output) error {
	if err := conn.WriteJSON(out); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "user_id", conn.UserId, "error", err)
		return err
	}

	return nil
}

// broadcast fans out to every connection in the group except exclude. Slow
// or broken recipients are skipped, never retried: delivery is best-effort
// per recipient and a failed write must not stall the rest of the group.
func (c controller) broadcast(ctx context.Context, conns []*connection.Conn, out *Output, exclude *connection.Conn) {
	for _, conn := range conns {
		if conn == exclude {
			continue
		}
		c.writeToConn(ctx, conn, out)
	}
}

// closeTarget closes every connection in the group belonging to targetId.
// Recipient filtering happens here at delivery time, not in the service.
func (c controller) closeTarget(ctx context.Context, conns []*connection.Conn, targetId string, code int, reason string) {
	for _, conn := range conns {
		if conn.UserId != targetId {
			continue
		}
		if err := conn.Close(code, reason); err != nil {
			c.logger.DebugContext(ctx, "failed to close conn", "user_id", conn.UserId, "error", err)
		}
	}
}
