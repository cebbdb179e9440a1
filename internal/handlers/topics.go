package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/repositories"
)

// TopicHandler manages topic administration.
type TopicHandler struct {
	topics repositories.TopicRepository
}

// NewTopicHandler builds a TopicHandler.
func NewTopicHandler(topics repositories.TopicRepository) *TopicHandler {
	return &TopicHandler{topics: topics}
}

// CreateTopic creates a topic and its backing group chat.
func (h *TopicHandler) CreateTopic(c *gin.Context) {
	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := identityFromContext(c)
	topic, chat, err := h.topics.CreateTopic(c.Request.Context(), req.Title, req.Description, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create topic"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"topic": topic, "chat": chat})
}

// ListTopics returns active topics.
func (h *TopicHandler) ListTopics(c *gin.Context) {
	topics, err := h.topics.ListTopics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load topics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// DeleteTopic soft-deletes a topic. Only the creator or an admin may.
func (h *TopicHandler) DeleteTopic(c *gin.Context) {
	topicID, err := strconv.Atoi(c.Param("topic_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic id"})
		return
	}

	identity := identityFromContext(c)
	topic, err := h.topics.GetTopic(c.Request.Context(), topicID)
	if err != nil {
		writeError(c, err)
		return
	}
	if topic.CreatorID != identity.UserID && identity.Role != "admin" {
		writeError(c, apperrors.Forbidden("only the creator or an admin can delete a topic"))
		return
	}

	if err := h.topics.DeactivateTopic(c.Request.Context(), topicID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
