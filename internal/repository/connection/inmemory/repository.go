package inmemory

import (
	"log/slog"
	"sync"

	"github.com/watchroom/server/internal/repository/connection"
)

// repo is the broadcast group registry: every live socket of a room, indexed
// by room and user. One logical broadcast domain, no sharding.
type repo struct {
	rooms  map[string]map[string]*connection.Conn
	byConn map[*connection.Conn]struct{}
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]map[string]*connection.Conn),
		byConn: make(map[*connection.Conn]struct{}),
		logger: logger,
	}
}

func (r *repo) Add(conn *connection.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[conn]; ok {
		return connection.ErrAlreadyExists
	}

	roomConns, ok := r.rooms[conn.RoomId]
	if !ok {
		roomConns = make(map[string]*connection.Conn)
		r.rooms[conn.RoomId] = roomConns
	}

	if _, ok := roomConns[conn.UserId]; ok {
		return connection.ErrAlreadyExists
	}

	roomConns[conn.UserId] = conn
	r.byConn[conn] = struct{}{}

	r.logger.Debug("connection added", "room_id", conn.RoomId, "user_id", conn.UserId)
	return nil
}

func (r *repo) Remove(conn *connection.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[conn]; !ok {
		return connection.ErrNotFound
	}

	delete(r.byConn, conn)
	if roomConns, ok := r.rooms[conn.RoomId]; ok {
		delete(roomConns, conn.UserId)
		if len(roomConns) == 0 {
			delete(r.rooms, conn.RoomId)
		}
	}

	r.logger.Debug("connection removed", "room_id", conn.RoomId, "user_id", conn.UserId)
	return nil
}

func (r *repo) GetRoomConns(roomId string) []*connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomConns := r.rooms[roomId]
	conns := make([]*connection.Conn, 0, len(roomConns))
	for _, conn := range roomConns {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) GetConn(roomId, userId string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.rooms[roomId][userId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}
