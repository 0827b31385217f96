package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
)

const writeWait = 10 * time.Second

// Conn wraps a websocket connection together with the identity it was
// admitted under. All writes go through a mutex, which gives each recipient
// FIFO delivery relative to the group's send sequence.
type Conn struct {
	ws       *websocket.Conn
	mu       sync.Mutex
	UserId   string
	Username string
	RoomId   string
	RoomCode string
	IsHost   bool
}

func NewConn(ws *websocket.Conn, userId, username, roomId, roomCode string, isHost bool) *Conn {
	return &Conn{
		ws:       ws,
		UserId:   userId,
		Username: username,
		RoomId:   roomId,
		RoomCode: roomCode,
		IsHost:   isHost,
	}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Close sends a close frame with the given code and shuts the socket down.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	return c.ws.Close()
}

func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}
