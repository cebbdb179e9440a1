package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"discussion-service/internal/models"
)

const (
	// DefaultStreamTimeout bounds the wait for a stream ack before falling
	// back to REST.
	DefaultStreamTimeout = 5 * time.Second
	// DefaultGraceWait is the pause after a lost ack during which a broadcast
	// of the same message may still arrive and settle the send.
	DefaultGraceWait = 500 * time.Millisecond
)

// StreamSender sends a message over the live stream and waits for the ack.
type StreamSender interface {
	SendMessage(ctx context.Context, target Target, content, clientKey string) (models.Message, error)
}

// FallbackSender persists a message over REST without broadcasting.
type FallbackSender interface {
	SendMessage(ctx context.Context, target Target, content, clientKey string) (models.Message, error)
}

// FailureHandler receives the draft of a send that exhausted both paths so
// the UI can restore it to the composer.
type FailureHandler func(target Target, content string, err error)

// Outbox drives optimistic sends: echo locally, try the stream, and on a
// lost ack settle via broadcast match or REST fallback. A message is never
// sent twice with different identities; the client key ties every attempt
// together.
type Outbox struct {
	userID   int
	username string

	rec      *Reconciler
	stream   StreamSender
	fallback FallbackSender

	streamTimeout time.Duration
	graceWait     time.Duration
	now           func() time.Time
	sleep         func(time.Duration)
	onFailure     FailureHandler

	mu      sync.Mutex
	pending map[string]*PendingSend
}

// NewOutbox builds an Outbox for one authenticated user.
func NewOutbox(userID int, username string, rec *Reconciler, stream StreamSender, fallback FallbackSender, onFailure FailureHandler) *Outbox {
	return &Outbox{
		userID:        userID,
		username:      username,
		rec:           rec,
		stream:        stream,
		fallback:      fallback,
		streamTimeout: DefaultStreamTimeout,
		graceWait:     DefaultGraceWait,
		now:           time.Now,
		sleep:         time.Sleep,
		onFailure:     onFailure,
		pending:       make(map[string]*PendingSend),
	}
}

// Pending returns the tracked send for a temp id, if any.
func (o *Outbox) Pending(tempID string) (*PendingSend, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ps, ok := o.pending[tempID]
	return ps, ok
}

// Send runs one optimistic send to completion. It blocks until the send
// reaches a terminal state; callers wanting fire-and-forget run it in a
// goroutine.
func (o *Outbox) Send(ctx context.Context, target Target, content string) (*PendingSend, error) {
	ps := &PendingSend{
		TempID:    "tmp-" + uuid.NewString(),
		ClientKey: uuid.NewString(),
		Target:    target,
		Content:   content,
		StartedAt: o.now(),
		state:     SendPending,
	}
	o.mu.Lock()
	o.pending[ps.TempID] = ps
	o.mu.Unlock()

	echo := models.Message{
		ChatID:     target.ChatID,
		SenderID:   o.userID,
		SenderName: o.username,
		Content:    content,
		ClientKey:  ps.ClientKey,
		CreatedAt:  ps.StartedAt,
	}
	if target.TopicID != 0 {
		topicID := target.TopicID
		echo.TopicID = &topicID
	}
	o.rec.AddLocalEcho(Entry{Message: echo, TempID: ps.TempID})

	streamCtx, cancel := context.WithTimeout(ctx, o.streamTimeout)
	msg, err := o.stream.SendMessage(streamCtx, target, content, ps.ClientKey)
	cancel()
	if err == nil {
		ps.Transition(SendAcknowledged)
		o.rec.ResolveTemp(ps.TempID, msg)
		ps.Transition(SendDelivered)
		return ps, nil
	}
	log.Printf("outbox: stream send %s lost ack: %v", ps.TempID, err)
	if terr := ps.Transition(SendTimedOut); terr != nil {
		return ps, terr
	}

	// The server may have persisted and broadcast the message even though
	// the ack never arrived. Give the broadcast a moment to land.
	o.sleep(o.graceWait)
	if o.rec.HasDelivered(ps.ClientKey, o.userID, content, ps.StartedAt) {
		o.rec.RemoveTemp(ps.TempID)
		ps.Transition(SendDelivered)
		return ps, nil
	}

	ps.Transition(SendFallbackPending)
	msg, err = o.fallback.SendMessage(ctx, target, content, ps.ClientKey)
	if err != nil {
		ps.Transition(SendFailed)
		o.rec.RemoveTemp(ps.TempID)
		if o.onFailure != nil {
			o.onFailure(target, content, err)
		}
		return ps, err
	}

	o.rec.ResolveTemp(ps.TempID, msg)
	ps.Transition(SendDelivered)
	return ps, nil
}
