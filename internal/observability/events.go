package observability

// EventEnvelope wraps a websocket lifecycle event for the event bus.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEventPayload describes a single connection lifecycle edge.
type WSEventPayload struct {
	Room       string `json:"room,omitempty"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	UserID     int    `json:"user_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
	IP         string `json:"ip,omitempty"`
}

// BuildHeaders assembles trace propagation headers for bus messages.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
