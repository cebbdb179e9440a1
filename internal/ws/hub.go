package ws

import (
	"encoding/json"
	"log"
	"sync"

	"discussion-service/internal/models"
)

// Hub is the room registry for one gateway instance: room key to attached
// sessions. Rooms are runtime fan-out groups keyed topic:<id>, chat:<id>, or
// user:<id>, independent of persisted membership. Cross-instance fan-out goes
// through an additional Broadcaster (see internal/bus).
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Session]struct{})}
}

// Join attaches the session to a room and returns the resulting occupancy.
func (h *Hub) Join(roomKey string, s *Session) int {
	h.mu.Lock()
	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[*Session]struct{})
	}
	h.rooms[roomKey][s] = struct{}{}
	size := len(h.rooms[roomKey])
	h.mu.Unlock()

	s.trackJoin(roomKey)
	return size
}

// Leave detaches the session from a room. No-op if not attached.
func (h *Hub) Leave(roomKey string, s *Session) {
	h.mu.Lock()
	if sessions, ok := h.rooms[roomKey]; ok {
		delete(sessions, s)
		if len(sessions) == 0 {
			delete(h.rooms, roomKey)
		}
	}
	h.mu.Unlock()

	s.trackLeave(roomKey)
}

// RoomSize returns the current occupancy of a room.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

// Emit sends the event to every session in the room, fire-and-forget.
func (h *Hub) Emit(roomKey string, event models.ServerEvent) {
	h.emit(roomKey, nil, event)
}

// EmitExcept sends the event to every session in the room except one, for
// notifications that should not echo back to their originator.
func (h *Hub) EmitExcept(roomKey string, except *Session, event models.ServerEvent) {
	h.emit(roomKey, except, event)
}

func (h *Hub) emit(roomKey string, except *Session, event models.ServerEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal room event: %v", err)
		return
	}

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.rooms[roomKey]))
	for s := range h.rooms[roomKey] {
		if s != except {
			sessions = append(sessions, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Enqueue(payload)
	}
}

// RemoveSession detaches the session from every room it was in and returns
// those room keys so the caller can notify remaining members.
func (h *Hub) RemoveSession(s *Session) []string {
	rooms := s.Rooms()
	for _, roomKey := range rooms {
		h.Leave(roomKey, s)
	}
	return rooms
}
