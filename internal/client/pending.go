package client

import (
	"fmt"
	"sync"
	"time"
)

// SendState tracks one optimistic send through its lifecycle.
type SendState int

const (
	// SendPending: echoed locally, stream send in flight.
	SendPending SendState = iota
	// SendAcknowledged: the stream ack arrived.
	SendAcknowledged
	// SendTimedOut: no ack within the stream timeout.
	SendTimedOut
	// SendFallbackPending: REST fallback in flight.
	SendFallbackPending
	// SendDelivered: persisted and reconciled into the view.
	SendDelivered
	// SendFailed: both paths exhausted; draft restored to the caller.
	SendFailed
)

func (s SendState) String() string {
	switch s {
	case SendPending:
		return "pending"
	case SendAcknowledged:
		return "acknowledged"
	case SendTimedOut:
		return "timed_out"
	case SendFallbackPending:
		return "fallback_pending"
	case SendDelivered:
		return "delivered"
	case SendFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var legalTransitions = map[SendState][]SendState{
	SendPending:         {SendAcknowledged, SendTimedOut, SendFailed},
	SendAcknowledged:    {SendDelivered},
	SendTimedOut:        {SendDelivered, SendFallbackPending},
	SendFallbackPending: {SendDelivered, SendFailed},
}

// PendingSend is the client-side record of one in-flight message.
type PendingSend struct {
	TempID    string
	ClientKey string
	Target    Target
	Content   string
	StartedAt time.Time

	mu    sync.Mutex
	state SendState
}

// State returns the current lifecycle state.
func (p *PendingSend) State() SendState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transition advances the lifecycle, rejecting moves the state machine does
// not allow.
func (p *PendingSend) Transition(to SendState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, next := range legalTransitions[p.state] {
		if next == to {
			p.state = to
			return nil
		}
	}
	return fmt.Errorf("send %s: illegal transition %s -> %s", p.TempID, p.state, to)
}

// Terminal reports whether the send reached a final state.
func (p *PendingSend) Terminal() bool {
	s := p.State()
	return s == SendDelivered || s == SendFailed
}
