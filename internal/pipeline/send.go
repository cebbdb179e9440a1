package pipeline

import (
	"context"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/auth"
	"discussion-service/internal/models"
	"discussion-service/internal/observability"
	"discussion-service/internal/repositories"
)

// DeliveryIntent says which entry point invoked the pipeline. Only the
// streaming path broadcasts; the fallback REST path leaves delivery to the
// caller, so a message never fans out twice for one logical send.
type DeliveryIntent int

const (
	// StreamingOriginated sends come from a live gateway connection and
	// broadcast to the target room after persisting.
	StreamingOriginated DeliveryIntent = iota
	// FallbackOriginated sends come from the request/response path and
	// persist without broadcasting.
	FallbackOriginated
)

func (i DeliveryIntent) String() string {
	if i == FallbackOriginated {
		return "rest"
	}
	return "stream"
}

// Broadcaster fans an event out to every connection attached to a room.
// Fan-out is best-effort: a failed or absent broadcast never invalidates a
// successful persist.
type Broadcaster interface {
	Emit(roomKey string, event models.ServerEvent)
}

// SendRequest is the single entry point's input. Exactly one of TopicID or
// ChatID must be set.
type SendRequest struct {
	Sender    auth.Identity
	TopicID   int
	ChatID    int
	Content   string
	ClientKey string
}

// Pipeline authorizes, persists, and fans out messages for both delivery
// paths.
type Pipeline struct {
	users       repositories.UserRepository
	topics      repositories.TopicRepository
	chats       repositories.ChatRepository
	messages    repositories.MessageRepository
	broadcaster Broadcaster
}

// New constructs a Pipeline.
func New(
	users repositories.UserRepository,
	topics repositories.TopicRepository,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	broadcaster Broadcaster,
) *Pipeline {
	return &Pipeline{
		users:       users,
		topics:      topics,
		chats:       chats,
		messages:    messages,
		broadcaster: broadcaster,
	}
}

// Send runs the pipeline: validate target, provision sender, check
// suspension, resolve membership (auto-joining topics only), persist, touch
// the chat watermark, then fan out once if the intent allows it.
func (p *Pipeline) Send(ctx context.Context, req SendRequest, intent DeliveryIntent) (models.Message, error) {
	ctx, span := otel.Tracer("discussion-service/pipeline").Start(ctx, "pipeline.send",
		trace.WithAttributes(
			attribute.Int("sender_id", req.Sender.UserID),
			attribute.String("delivery_intent", intent.String()),
		))
	defer span.End()

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return models.Message{}, apperrors.ErrEmptyContent
	}
	if (req.TopicID == 0) == (req.ChatID == 0) {
		return models.Message{}, apperrors.ErrAmbiguousTarget
	}

	// First contact from a freshly provisioned identity: mirror the verified
	// claims into the local store instead of failing the send.
	if err := p.users.EnsureUser(ctx, models.User{
		ID:       req.Sender.UserID,
		Username: req.Sender.Username,
		Email:    req.Sender.Email,
		Role:     req.Sender.Role,
	}); err != nil {
		return models.Message{}, apperrors.Wrap(apperrors.CodeInternal, "failed to provision sender", err)
	}

	sender, err := p.users.GetUser(ctx, req.Sender.UserID)
	if err != nil {
		return models.Message{}, apperrors.Wrap(apperrors.CodeInternal, "failed to load sender", err)
	}
	if sender.Suspended {
		return models.Message{}, apperrors.ErrSenderSuspended
	}

	chat, topicID, err := p.resolveTarget(ctx, req)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := p.messages.CreateMessage(ctx, chat.ID, topicID, sender.ID, content, req.ClientKey)
	if err != nil {
		return models.Message{}, apperrors.Wrap(apperrors.CodeInternal, "failed to store message", err)
	}
	msg.SenderName = sender.Username

	if err := p.chats.TouchLastMessage(ctx, chat.ID, msg.CreatedAt); err != nil {
		// The message exists; a stale watermark only affects list ordering.
		log.Printf("touch last_message_at failed for chat %d: %v", chat.ID, err)
	}

	observability.IncMessageSent(intent.String())

	if intent == StreamingOriginated {
		p.broadcast(msg)
	}
	return msg, nil
}

// resolveTarget maps the request to a chat, enforcing the membership rules:
// topics auto-join on first send, direct chats never do.
func (p *Pipeline) resolveTarget(ctx context.Context, req SendRequest) (models.Chat, *int, error) {
	if req.TopicID != 0 {
		topic, err := p.topics.GetTopic(ctx, req.TopicID)
		if err != nil {
			return models.Chat{}, nil, err
		}
		chat, err := p.chats.GetChatByTopic(ctx, topic.ID)
		if err != nil {
			return models.Chat{}, nil, err
		}
		if err := p.chats.EnsureActiveMember(ctx, chat.ID, req.Sender.UserID); err != nil {
			return models.Chat{}, nil, apperrors.Wrap(apperrors.CodeInternal, "failed to join topic chat", err)
		}
		topicID := topic.ID
		return chat, &topicID, nil
	}

	chat, err := p.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		return models.Chat{}, nil, err
	}
	member, err := p.chats.IsActiveMember(ctx, chat.ID, req.Sender.UserID)
	if err != nil {
		return models.Chat{}, nil, apperrors.Wrap(apperrors.CodeInternal, "failed to verify membership", err)
	}
	if !member {
		return models.Chat{}, nil, apperrors.ErrNotChatMember
	}
	return chat, chat.TopicID, nil
}

// broadcast emits the persisted message to its room and, as a delivery
// fallback, to the sender's personal room.
func (p *Pipeline) broadcast(msg models.Message) {
	if p.broadcaster == nil {
		return
	}

	event := models.ServerEvent{Event: models.EventNewMessage, Message: &msg}
	if msg.TopicID != nil {
		p.broadcaster.Emit(models.TopicRoom(*msg.TopicID), event)
		observability.IncBroadcast("topic")
	} else {
		p.broadcaster.Emit(models.ChatRoom(msg.ChatID), event)
		observability.IncBroadcast("chat")
	}
	p.broadcaster.Emit(models.UserRoom(msg.SenderID), event)
	observability.IncBroadcast("user")
}
