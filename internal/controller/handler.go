package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
)

const closeWait = 10 * time.Second

// closeWS rejects a socket that never made it into a broadcast group. The
// close code is the whole protocol here: clients key reconnect behavior off
// it.
func (c controller) closeWS(ws *websocket.Conn, code int, reason string) {
	ws.SetWriteDeadline(time.Now().Add(closeWait))
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	ws.Close()
}

func (c controller) roomWS(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "room-code")
	token := r.URL.Query().Get("token")

	// Upgrade before admission so rejections can carry their close code.
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	ctx := r.Context()

	admitResp, err := c.roomService.AdmitSession(ctx, &room.AdmitSessionParams{
		Token:    token,
		RoomCode: roomCode,
	})
	if err != nil {
		var admissionErr *room.AdmissionError
		if errors.As(err, &admissionErr) {
			c.logger.DebugContext(ctx, "admission rejected", "room_code", roomCode, "reason", admissionErr.Reason)
			c.closeWS(ws, admissionErr.Code, admissionErr.Reason)
			return
		}
		c.logger.WarnContext(ctx, "failed to admit session", "error", err)
		c.closeWS(ws, websocket.CloseInternalServerErr, "internal error")
		return
	}

	if admitResp.HostReconnected {
		c.broadcast(ctx, admitResp.GroupConns, &Output{Type: "HOST_RECONNECTED"}, nil)
	}

	conn := connection.NewConn(ws,
		admitResp.User.UserId,
		admitResp.User.DisplayName,
		admitResp.Room.Id,
		admitResp.Room.Code,
		admitResp.IsHost,
	)

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", conn.RoomId))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", conn.UserId))

	connectResp, err := c.roomService.ConnectSession(ctx, &room.ConnectSessionParams{Conn: conn})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to connect session", "error", err)
		c.closeWS(ws, websocket.CloseInternalServerErr, "internal error")
		return
	}
	defer c.teardown(ctx, conn)

	c.broadcast(ctx, connectResp.Conns, &Output{
		Type: "ROOM_PARTICIPANTS",
		Payload: map[string]any{
			"participants": connectResp.Roster.Participants,
			"host":         connectResp.Roster.Host,
		},
	}, nil)

	c.writeToConn(ctx, conn, &Output{
		Type:    "CHAT_HISTORY",
		Payload: map[string]any{"messages": chatHistoryPayload(connectResp.History)},
	})
	c.writeToConn(ctx, conn, &Output{
		Type:    "PLAYBACK_STATE",
		Payload: playbackPayload(&connectResp.Playback),
	})

	c.broadcast(ctx, connectResp.Conns, &Output{
		Type:    "USER_JOINED",
		Payload: map[string]any{"user": conn.Username},
	}, conn)

	c.serveConn(ctx, conn)
}

func chatHistoryPayload(history []domain.ChatMessage) []map[string]any {
	messages := make([]map[string]any, 0, len(history))
	for i := range history {
		messages = append(messages, chatMessagePayload(&history[i]))
	}

	return messages
}

// teardown runs on every exit path of a served connection, protocol errors
// included.
func (c controller) teardown(ctx context.Context, conn *connection.Conn) {
	disconnectResp, err := c.roomService.DisconnectSession(ctx, &room.DisconnectSessionParams{Conn: conn})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect session", "error", err)
		conn.Close(websocket.CloseNormalClosure, "")
		return
	}

	if disconnectResp.IsHost && disconnectResp.GraceSeconds > 0 {
		c.broadcast(ctx, disconnectResp.Conns, &Output{
			Type:    "HOST_DISCONNECTED",
			Payload: map[string]any{"grace_seconds": disconnectResp.GraceSeconds},
		}, nil)
	} else if !disconnectResp.IsHost {
		c.broadcast(ctx, disconnectResp.Conns, &Output{
			Type:    "USER_LEFT",
			Payload: map[string]any{"user": conn.Username},
		}, nil)
	}

	conn.Close(websocket.CloseNormalClosure, "")
}

func (c controller) deleteRoom(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "room-code")
	token := r.URL.Query().Get("token")

	deleteResp, err := c.roomService.DeleteRoom(r.Context(), &room.DeleteRoomParams{
		RoomCode: roomCode,
		Token:    token,
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrPermissionDenied):
			c.writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
		case errors.Is(err, domain.ErrRoomNotFound):
			c.writeJSON(w, http.StatusNotFound, map[string]any{"error": "room not found"})
		default:
			c.logger.WarnContext(r.Context(), "failed to delete room", "error", err)
			c.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}

	c.broadcast(r.Context(), deleteResp.Conns, &Output{Type: "ROOM_DELETED"}, nil)
	for _, conn := range deleteResp.Conns {
		conn.Close(websocket.CloseNormalClosure, "room deleted")
	}

	c.writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (c controller) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
