package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/presence"
	"discussion-service/internal/repositories"
)

// ChatHandler serves conversation listing, direct-chat bootstrap, and
// presence diagnostics.
type ChatHandler struct {
	chats    repositories.ChatRepository
	blocks   repositories.BlockRepository
	presence *presence.Store
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats repositories.ChatRepository, blocks repositories.BlockRepository, presenceStore *presence.Store) *ChatHandler {
	return &ChatHandler{chats: chats, blocks: blocks, presence: presenceStore}
}

// ListConversations returns the chats the caller actively belongs to.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := identityFromContext(c).UserID

	summaries, err := h.chats.ListSummaries(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// StartDirectChat creates or returns the one-to-one chat with another user.
// A block in either direction refuses creation; existing chats and their
// history are untouched by blocks.
func (h *ChatHandler) StartDirectChat(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := identityFromContext(c).UserID
	if userID == req.UserID {
		writeError(c, apperrors.ErrSelfChat)
		return
	}

	blocked, err := h.blocks.IsBlockedEitherWay(c.Request.Context(), userID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check blocks"})
		return
	}
	if blocked {
		writeError(c, apperrors.ErrBlocked)
		return
	}

	chat, err := h.chats.CreateOrGetDirectChat(c.Request.Context(), userID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListOnline returns the best-effort set of currently connected users.
// Diagnostics only; nothing may gate correctness on it.
func (h *ChatHandler) ListOnline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.presence.ListOnline()})
}
