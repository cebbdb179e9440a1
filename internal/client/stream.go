package client

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// EventHandler receives server events that are not acks of a local request.
type EventHandler func(models.ServerEvent)

// ReconnectHandler runs after a dropped stream is re-established, before any
// new events are dispatched. Implementations rejoin rooms and refetch the
// first history page to close the gap.
type ReconnectHandler func(ctx context.Context)

// StreamClient maintains the websocket to the gateway. Requests carrying an
// ack id are matched to their ack by the read loop; everything else flows to
// the event handler.
type StreamClient struct {
	url    string
	token  string
	dialer *websocket.Dialer

	onEvent     EventHandler
	onReconnect ReconnectHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	acks    map[string]chan models.ServerEvent
	closed  bool
	started bool
}

// NewStreamClient builds a client for a gateway websocket URL.
func NewStreamClient(url, token string, onEvent EventHandler, onReconnect ReconnectHandler) *StreamClient {
	return &StreamClient{
		url:         url,
		token:       token,
		dialer:      websocket.DefaultDialer,
		onEvent:     onEvent,
		onReconnect: onReconnect,
		acks:        make(map[string]chan models.ServerEvent),
	}
}

// Connect dials the gateway and starts the read loop. Subsequent drops are
// redialed automatically until Close.
func (c *StreamClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("stream client already connected")
	}
	c.started = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(ctx)
	return nil
}

func (c *StreamClient) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// Close shuts the stream down permanently.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	for id, ch := range c.acks {
		close(ch)
		delete(c.acks, id)
	}
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *StreamClient) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		var ev models.ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			c.mu.Lock()
			closed = c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			log.Printf("stream: connection lost: %v", err)
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		if ev.AckID != "" {
			c.mu.Lock()
			ch, ok := c.acks[ev.AckID]
			if ok {
				delete(c.acks, ev.AckID)
			}
			c.mu.Unlock()
			if ok {
				ch <- ev
				close(ch)
				continue
			}
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// reconnect redials with capped exponential backoff. Returns false when the
// client was closed or the context ended.
func (c *StreamClient) reconnect(ctx context.Context) bool {
	delay := reconnectBaseDelay
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		conn, err := c.dial(ctx)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			log.Printf("stream: reconnected")
			if c.onReconnect != nil {
				c.onReconnect(ctx)
			}
			return true
		}
		log.Printf("stream: redial failed: %v", err)
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// request writes a client event and waits for its ack.
func (c *StreamClient) request(ctx context.Context, ev models.ClientEvent) (models.ServerEvent, error) {
	ev.AckID = uuid.NewString()
	ch := make(chan models.ServerEvent, 1)

	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return models.ServerEvent{}, apperrors.ErrBroadcastFailure
	}
	c.acks[ev.AckID] = ch
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteJSON(ev); err != nil {
		c.mu.Lock()
		delete(c.acks, ev.AckID)
		c.mu.Unlock()
		return models.ServerEvent{}, err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.acks, ev.AckID)
		c.mu.Unlock()
		return models.ServerEvent{}, ctx.Err()
	case ack, ok := <-ch:
		if !ok {
			return models.ServerEvent{}, errors.New("stream closed while awaiting ack")
		}
		if ack.Event == models.EventError || !ack.Success {
			return ack, ackError(ack)
		}
		return ack, nil
	}
}

func ackError(ack models.ServerEvent) error {
	if ack.Error != nil {
		return apperrors.New(apperrors.Code(ack.Error.Code), ack.Error.Message)
	}
	return errors.New("request rejected")
}

// SendMessage sends over the stream and returns the persisted message from
// the ack. Satisfies StreamSender.
func (c *StreamClient) SendMessage(ctx context.Context, target Target, content, clientKey string) (models.Message, error) {
	ack, err := c.request(ctx, models.ClientEvent{
		Event:     models.EventSendMessage,
		TopicID:   target.TopicID,
		ChatID:    target.ChatID,
		Content:   content,
		ClientKey: clientKey,
	})
	if err != nil {
		return models.Message{}, err
	}
	if ack.Message == nil {
		return models.Message{}, errors.New("ack missing message payload")
	}
	return *ack.Message, nil
}

// Join subscribes to a conversation's room.
func (c *StreamClient) Join(ctx context.Context, target Target) error {
	ev := models.ClientEvent{Event: models.EventJoinChat, ChatID: target.ChatID}
	if target.TopicID != 0 {
		ev = models.ClientEvent{Event: models.EventJoinTopic, TopicID: target.TopicID}
	}
	_, err := c.request(ctx, ev)
	return err
}

// Leave unsubscribes from a conversation's room.
func (c *StreamClient) Leave(ctx context.Context, target Target) error {
	ev := models.ClientEvent{Event: models.EventLeaveChat, ChatID: target.ChatID}
	if target.TopicID != 0 {
		ev = models.ClientEvent{Event: models.EventLeaveTopic, TopicID: target.TopicID}
	}
	_, err := c.request(ctx, ev)
	return err
}

// Typing sends a typing indicator without waiting for any response.
func (c *StreamClient) Typing(target Target, isTyping bool) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if closed || conn == nil {
		return apperrors.ErrBroadcastFailure
	}
	return conn.WriteJSON(models.ClientEvent{
		Event:    models.EventTyping,
		TopicID:  target.TopicID,
		ChatID:   target.ChatID,
		IsTyping: isTyping,
	})
}
