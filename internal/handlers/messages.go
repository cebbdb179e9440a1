package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/models"
	"discussion-service/internal/pipeline"
	"discussion-service/internal/repositories"
)

// Sender is the slice of the send pipeline the REST surface invokes.
type Sender interface {
	Send(ctx context.Context, req pipeline.SendRequest, intent pipeline.DeliveryIntent) (models.Message, error)
}

// MessageHandler serves the fallback send path and paginated history.
type MessageHandler struct {
	sender   Sender
	topics   repositories.TopicRepository
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(
	sender Sender,
	topics repositories.TopicRepository,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
) *MessageHandler {
	return &MessageHandler{sender: sender, topics: topics, chats: chats, messages: messages}
}

// PostMessage persists a message via the request/response path. The pipeline
// runs with FallbackOriginated intent: no broadcast is emitted, the caller
// reflects the returned message locally.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		TopicID   int    `json:"topic_id"`
		ChatID    int    `json:"chat_id"`
		Content   string `json:"content" binding:"required"`
		ClientKey string `json:"client_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sender.Send(c.Request.Context(), pipeline.SendRequest{
		Sender:    identityFromContext(c),
		TopicID:   req.TopicID,
		ChatID:    req.ChatID,
		Content:   req.Content,
		ClientKey: req.ClientKey,
	}, pipeline.FallbackOriginated)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages returns one history page, oldest-first, for a topic or chat.
// Topic history is readable before joining; chat history requires active
// membership.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	topicID, _ := strconv.Atoi(c.Query("topic_id"))
	chatID, _ := strconv.Atoi(c.Query("chat_id"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if (topicID == 0) == (chatID == 0) {
		writeError(c, apperrors.ErrAmbiguousTarget)
		return
	}

	ctx := c.Request.Context()
	userID := identityFromContext(c).UserID

	var chat models.Chat
	if topicID != 0 {
		topic, err := h.topics.GetTopic(ctx, topicID)
		if err != nil {
			writeError(c, err)
			return
		}
		chat, err = h.chats.GetChatByTopic(ctx, topic.ID)
		if err != nil {
			writeError(c, err)
			return
		}
	} else {
		var err error
		chat, err = h.chats.GetChat(ctx, chatID)
		if err != nil {
			writeError(c, err)
			return
		}
		member, err := h.chats.IsActiveMember(ctx, chat.ID, userID)
		if err != nil {
			writeError(c, apperrors.Wrap(apperrors.CodeInternal, "failed to verify membership", err))
			return
		}
		if !member {
			writeError(c, apperrors.ErrNotChatMember)
			return
		}
	}

	msgs, pagination, err := h.messages.ListPage(ctx, chat.ID, page, limit)
	if err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInternal, "failed to load messages", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "pagination": pagination})
}
