package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"discussion-service/internal/auth"
	"discussion-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// Session is one authenticated websocket connection. Writes go through a
// buffered channel drained by writePump, so fan-out never blocks on a slow
// member.
type Session struct {
	ID          string
	Identity    auth.Identity
	IP          string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

func newSession(conn *websocket.Conn, identity auth.Identity, ip string) *Session {
	return &Session{
		ID:          newConnID(),
		Identity:    identity,
		IP:          ip,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		rooms:       make(map[string]struct{}),
	}
}

// Enqueue hands a payload to the writer. Returns false when the session is
// closed or its buffer is full; a full buffer closes the session rather than
// stalling the emitter.
func (s *Session) Enqueue(payload []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	select {
	case s.send <- payload:
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		log.Printf("session %s send buffer full, closing", s.ID)
		s.CloseSend()
		return false
	}
}

// Send marshals and enqueues a single server event.
func (s *Session) Send(event models.ServerEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal server event: %v", err)
		return
	}
	s.Enqueue(payload)
}

// CloseSend stops the writer. Safe to call more than once.
func (s *Session) CloseSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) trackJoin(roomKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomKey] = struct{}{}
}

func (s *Session) trackLeave(roomKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomKey)
}

// Rooms snapshots the rooms this session is attached to.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for roomKey := range s.rooms {
		rooms = append(rooms, roomKey)
	}
	return rooms
}

// writePump drains the send channel and keeps the connection alive with
// pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
