package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/auth"
	"discussion-service/internal/models"
	"discussion-service/internal/observability"
	"discussion-service/internal/pipeline"
	"discussion-service/internal/presence"
	"discussion-service/internal/repositories"
)

// Sender is the slice of the send pipeline the gateway invokes.
type Sender interface {
	Send(ctx context.Context, req pipeline.SendRequest, intent pipeline.DeliveryIntent) (models.Message, error)
}

// Gateway accepts streaming connections on /chat, authenticates them, and
// dispatches the room and send operations of the protocol.
type Gateway struct {
	hub      *Hub
	presence *presence.Store
	verifier auth.Verifier
	sender   Sender
	topics   repositories.TopicRepository
	chats    repositories.ChatRepository
}

// NewGateway constructs a Gateway.
func NewGateway(
	hub *Hub,
	presenceStore *presence.Store,
	verifier auth.Verifier,
	sender Sender,
	topics repositories.TopicRepository,
	chats repositories.ChatRepository,
) *Gateway {
	return &Gateway{
		hub:      hub,
		presence: presenceStore,
		verifier: verifier,
		sender:   sender,
		topics:   topics,
		chats:    chats,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates and upgrades the connection, joins the personal room,
// registers presence, and starts the read/write pumps. Any verification
// failure rejects before the upgrade, closing the attempt.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("discussion-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	identity, err := g.validateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	session := newSession(conn, identity, observability.IPFromRequest(c.Request))
	g.hub.Join(models.UserRoom(identity.UserID), session)
	g.presence.Connect(identity.UserID)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		g.presence.Heartbeat(session.Identity.UserID)
		return nil
	})

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	requestID := observability.RequestIDFromRequest(c.Request)
	traceID := span.SpanContext().TraceID().String()
	g.publishWSEvent(ctx, "ws_connect", session, "", requestID, traceID)

	go session.writePump()
	// The request context dies with the handler; the connection outlives it.
	go g.readLoop(context.WithoutCancel(ctx), session, requestID, traceID)
}

func (g *Gateway) readLoop(ctx context.Context, session *Session, requestID, traceID string) {
	var closeReason string
	defer func() {
		rooms := g.hub.RemoveSession(session)
		for _, roomKey := range rooms {
			g.hub.Emit(roomKey, models.ServerEvent{
				Event:    leaveEventFor(roomKey),
				Room:     roomKey,
				UserID:   session.Identity.UserID,
				Username: session.Identity.Username,
			})
		}
		g.presence.Disconnect(session.Identity.UserID)
		session.CloseSend()
		session.conn.Close()

		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		g.publishWSEvent(ctx, "ws_disconnect", session, closeReason, requestID, traceID)
	}()

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				g.publishWSEvent(ctx, "ws_error", session, closeReason, requestID, traceID)
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			session.Send(errorEvent("", apperrors.InvalidArg("malformed event payload")))
			continue
		}
		g.dispatch(ctx, session, ev)
	}
}

func (g *Gateway) dispatch(ctx context.Context, s *Session, ev models.ClientEvent) {
	observability.IncWSEvent(ev.Event)

	switch ev.Event {
	case models.EventJoinTopic:
		if _, err := g.topics.GetTopic(ctx, ev.TopicID); err != nil {
			s.Send(errorEvent(ev.AckID, err))
			return
		}
		g.joinRoom(s, models.TopicRoom(ev.TopicID), models.EventUserJoined, ev.AckID)

	case models.EventLeaveTopic:
		g.leaveRoom(s, models.TopicRoom(ev.TopicID), models.EventUserLeft, ev.AckID)

	case models.EventJoinChat:
		member, err := g.chats.IsActiveMember(ctx, ev.ChatID, s.Identity.UserID)
		if err != nil {
			s.Send(errorEvent(ev.AckID, apperrors.Wrap(apperrors.CodeInternal, "failed to verify membership", err)))
			return
		}
		if !member {
			s.Send(errorEvent(ev.AckID, apperrors.ErrNotChatMember))
			return
		}
		g.joinRoom(s, models.ChatRoom(ev.ChatID), models.EventUserJoinedChat, ev.AckID)

	case models.EventLeaveChat:
		g.leaveRoom(s, models.ChatRoom(ev.ChatID), models.EventUserLeftChat, ev.AckID)

	case models.EventSendMessage:
		// The full verified identity flows through so first-contact
		// provisioning carries the email and role from the claims.
		msg, err := g.sender.Send(ctx, pipeline.SendRequest{
			Sender:    s.Identity,
			TopicID:   ev.TopicID,
			ChatID:    ev.ChatID,
			Content:   ev.Content,
			ClientKey: ev.ClientKey,
		}, pipeline.StreamingOriginated)
		if err != nil {
			s.Send(errorEvent(ev.AckID, err))
			return
		}
		s.Send(models.ServerEvent{Event: models.EventAck, AckID: ev.AckID, Success: true, Message: &msg})

	case models.EventTyping:
		roomKey, err := targetRoom(ev)
		if err != nil {
			s.Send(errorEvent(ev.AckID, err))
			return
		}
		g.hub.EmitExcept(roomKey, s, models.ServerEvent{
			Event:    models.EventUserTyping,
			Room:     roomKey,
			UserID:   s.Identity.UserID,
			Username: s.Identity.Username,
			IsTyping: ev.IsTyping,
		})

	default:
		s.Send(errorEvent(ev.AckID, apperrors.InvalidArg(fmt.Sprintf("unknown event %q", ev.Event))))
	}
}

func (g *Gateway) joinRoom(s *Session, roomKey, notifyEvent, ackID string) {
	size := g.hub.Join(roomKey, s)
	if ackID != "" {
		s.Send(models.ServerEvent{Event: models.EventAck, AckID: ackID, Success: true, Room: roomKey, RoomSize: size})
	}
	g.hub.EmitExcept(roomKey, s, models.ServerEvent{
		Event:    notifyEvent,
		Room:     roomKey,
		UserID:   s.Identity.UserID,
		Username: s.Identity.Username,
	})
}

func (g *Gateway) leaveRoom(s *Session, roomKey, notifyEvent, ackID string) {
	g.hub.Leave(roomKey, s)
	if ackID != "" {
		s.Send(models.ServerEvent{Event: models.EventAck, AckID: ackID, Success: true, Room: roomKey})
	}
	g.hub.Emit(roomKey, models.ServerEvent{
		Event:    notifyEvent,
		Room:     roomKey,
		UserID:   s.Identity.UserID,
		Username: s.Identity.Username,
	})
}

func (g *Gateway) validateToken(ctx context.Context, header string) (auth.Identity, error) {
	if header == "" {
		return auth.Identity{}, apperrors.ErrUnauthenticated
	}
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return g.verifier.Verify(ctx, parts[1])
	}
	return auth.Identity{}, apperrors.ErrInvalidToken
}

func (g *Gateway) publishWSEvent(ctx context.Context, name string, s *Session, reason, requestID, traceID string) {
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: observability.WSEventPayload{
			Event:      name,
			ConnID:     s.ID,
			UserID:     s.Identity.UserID,
			DurationMS: time.Since(s.ConnectedAt).Milliseconds(),
			Reason:     reason,
			IP:         s.IP,
		},
	}, observability.BuildHeaders(requestID, traceID))
}

func targetRoom(ev models.ClientEvent) (string, error) {
	if (ev.TopicID == 0) == (ev.ChatID == 0) {
		return "", apperrors.ErrAmbiguousTarget
	}
	if ev.TopicID != 0 {
		return models.TopicRoom(ev.TopicID), nil
	}
	return models.ChatRoom(ev.ChatID), nil
}

func leaveEventFor(roomKey string) string {
	if strings.HasPrefix(roomKey, "chat:") {
		return models.EventUserLeftChat
	}
	return models.EventUserLeft
}

func errorEvent(ackID string, err error) models.ServerEvent {
	return models.ServerEvent{
		Event: models.EventError,
		AckID: ackID,
		Error: &models.ErrorPayload{
			Code:    string(apperrors.CodeOf(err)),
			Message: apperrors.MessageOf(err),
		},
	}
}
