package telemetry

import (
	"context"
	"log"
	"time"

	"discussion-service/internal/observability"
)

// AuditEmitter ships audit-log envelopes over the event bus.
type AuditEmitter struct {
	routingKey  string
	service     string
	environment string
}

// AuditEnvelope is the audit event wire format.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *int         `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// NewAuditEmitter constructs an AuditEmitter.
func NewAuditEmitter(routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit entry. Publish failures are logged, not returned.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *int) {
	if e == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}

	if err := observability.PublishEvent(ctx, e.routingKey, envelope, observability.BuildHeaders(requestID, "")); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
