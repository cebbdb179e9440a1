package mocks

import (
	"sync"

	"discussion-service/internal/models"
	"discussion-service/internal/pipeline"
)

var _ pipeline.Broadcaster = (*BroadcasterMock)(nil)

// Emission records one broadcast call.
type Emission struct {
	Room  string
	Event models.ServerEvent
}

// BroadcasterMock records emissions for assertion. Emit never fails, like
// the real thing.
type BroadcasterMock struct {
	mu        sync.Mutex
	Emissions []Emission
}

func (m *BroadcasterMock) Emit(roomKey string, event models.ServerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emissions = append(m.Emissions, Emission{Room: roomKey, Event: event})
}

// Rooms returns the room keys emitted to, in order.
func (m *BroadcasterMock) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]string, len(m.Emissions))
	for i, e := range m.Emissions {
		rooms[i] = e.Room
	}
	return rooms
}
