package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"discussion-service/internal/repositories"
)

// BlockHandler manages directional user blocks.
type BlockHandler struct {
	blocks repositories.BlockRepository
}

// NewBlockHandler builds a BlockHandler.
func NewBlockHandler(blocks repositories.BlockRepository) *BlockHandler {
	return &BlockHandler{blocks: blocks}
}

// Block records a block of another user by the caller.
func (h *BlockHandler) Block(c *gin.Context) {
	var req struct {
		BlockedID int    `json:"blocked_id" binding:"required"`
		Reason    string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := identityFromContext(c).UserID
	if userID == req.BlockedID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot block yourself"})
		return
	}

	block, err := h.blocks.Block(c.Request.Context(), userID, req.BlockedID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, block)
}

// Unblock removes a block the caller previously created.
func (h *BlockHandler) Unblock(c *gin.Context) {
	blockedID, err := strconv.Atoi(c.Param("blocked_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := identityFromContext(c).UserID
	if err := h.blocks.Unblock(c.Request.Context(), userID, blockedID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListBlocked returns the callers' blocks. Clients use this to filter
// blocked senders out of their local view; the server never rewrites
// history.
func (h *BlockHandler) ListBlocked(c *gin.Context) {
	userID := identityFromContext(c).UserID

	blocks, err := h.blocks.ListBlocked(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load blocks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocked": blocks})
}
