package models

// Client-to-server websocket events.
const (
	EventJoinTopic   = "join-topic"
	EventLeaveTopic  = "leave-topic"
	EventJoinChat    = "join-chat"
	EventLeaveChat   = "leave-chat"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
)

// Server-to-client websocket events.
const (
	EventNewMessage     = "new-message"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventUserJoinedChat = "user-joined-chat"
	EventUserLeftChat   = "user-left-chat"
	EventUserTyping     = "user-typing"
	EventAck            = "ack"
	EventError          = "error"
)

// ClientEvent is the envelope clients write on the websocket.
type ClientEvent struct {
	Event     string `json:"event"`
	AckID     string `json:"ack_id,omitempty"`
	TopicID   int    `json:"topic_id,omitempty"`
	ChatID    int    `json:"chat_id,omitempty"`
	Content   string `json:"content,omitempty"`
	ClientKey string `json:"client_key,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
}

// ServerEvent is the envelope the gateway and hub write to clients.
type ServerEvent struct {
	Event    string        `json:"event"`
	AckID    string        `json:"ack_id,omitempty"`
	Success  bool          `json:"success,omitempty"`
	Message  *Message      `json:"message,omitempty"`
	Error    *ErrorPayload `json:"error,omitempty"`
	Room     string        `json:"room,omitempty"`
	RoomSize int           `json:"room_size,omitempty"`
	UserID   int           `json:"user_id,omitempty"`
	Username string        `json:"username,omitempty"`
	IsTyping bool          `json:"is_typing,omitempty"`
}

// ErrorPayload carries a machine-readable error over the websocket so clients
// can tell "not yet connected" apart from "rejected".
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
