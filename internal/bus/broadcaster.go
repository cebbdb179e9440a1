package bus

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"discussion-service/internal/models"
	"discussion-service/internal/observability"
	"discussion-service/internal/pipeline"
)

// RoomEvent is the wire form of a room emission on the bus. Peer gateway
// instances consume these to fan out to their own attached sessions.
type RoomEvent struct {
	Room  string             `json:"room"`
	Event models.ServerEvent `json:"event"`
	At    time.Time          `json:"at"`
}

// NewBroadcaster builds an AMQP-backed room broadcaster, or a logged noop
// when AMQP is not configured or unreachable. The in-process hub stays the
// primary delivery path either way; the bus only adds cross-instance reach.
func NewBroadcaster(amqpURL, exchange string) pipeline.Broadcaster {
	if amqpURL == "" {
		log.Printf("room bus disabled, using noop: empty amqp url")
		return noopBroadcaster{}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Printf("room bus disabled, using noop: %v", err)
		return noopBroadcaster{}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("room bus disabled, using noop: %v", err)
		_ = conn.Close()
		return noopBroadcaster{}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Printf("room bus disabled, using noop: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopBroadcaster{}
	}

	log.Printf("room bus connected exchange=%s", exchange)
	return &amqpBroadcaster{conn: conn, ch: ch, exchange: exchange}
}

type amqpBroadcaster struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Emit publishes the room event. Failures are logged and counted, never
// surfaced: bus delivery is best-effort on top of a completed persist.
func (b *amqpBroadcaster) Emit(roomKey string, event models.ServerEvent) {
	body, err := json.Marshal(RoomEvent{Room: roomKey, Event: event, At: time.Now().UTC()})
	if err != nil {
		log.Printf("room bus marshal failed: %v", err)
		return
	}

	err = b.ch.PublishWithContext(context.Background(), b.exchange, routingKey(roomKey), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		log.Printf("room bus publish failed: %v", err)
		observability.IncAMQPPublishError()
	}
}

func (b *amqpBroadcaster) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

type noopBroadcaster struct{}

func (noopBroadcaster) Emit(roomKey string, event models.ServerEvent) {}

func routingKey(roomKey string) string {
	return "rooms." + strings.ReplaceAll(roomKey, ":", ".")
}

// Fanout emits to several broadcasters in order, typically the local hub
// first and the bus second.
type Fanout []pipeline.Broadcaster

func (f Fanout) Emit(roomKey string, event models.ServerEvent) {
	for _, target := range f {
		target.Emit(roomKey, event)
	}
}
