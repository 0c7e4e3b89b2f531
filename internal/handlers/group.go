package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/repositories"
	"github.com/zKaminise/Message-App/internal/telemetry"
)

// GroupHandler manages group lifecycle endpoints. Message traffic inside a
// group goes through the shared chat endpoints.
type GroupHandler struct {
	chatRepo repositories.ChatRepository
	audit    *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(chatRepo repositories.ChatRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{chatRepo: chatRepo, audit: audit}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	uid := c.GetString("userID")

	var req struct {
		Name      string   `json:"name" binding:"required"`
		MemberIDs []string `json:"member_ids" binding:"required"`
		PhotoURL  *string  `json:"photo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chatRepo.CreateGroup(c.Request.Context(), req.Name, uid, req.MemberIDs, req.PhotoURL)
	if err != nil {
		h.failWith(c, err, "could not create group")
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, chat)
}

// UpdateGroup applies a partial metadata update. Owner only.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	chat, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	var req models.GroupMetaUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if err := h.chatRepo.UpdateGroupMeta(c.Request.Context(), chat.ID, req); err != nil {
		h.failWith(c, err, "could not update group")
		return
	}

	h.emitAudit(c, "INFO", "Group updated")
	c.Status(http.StatusNoContent)
}

// AddMembers adds users to a group. Any member may invite.
func (h *GroupHandler) AddMembers(c *gin.Context) {
	chat, ok := h.memberGroup(c)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []string `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatRepo.AddMembers(c.Request.Context(), chat.ID, req.MemberIDs); err != nil {
		h.failWith(c, err, "could not add members")
		return
	}

	h.emitAudit(c, "INFO", "Group members added")
	c.Status(http.StatusNoContent)
}

// RemoveMember kicks a user out of the group. Owner only.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	chat, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	target := c.Param("uid")
	if target == c.GetString("userID") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use leave to remove yourself"})
		return
	}

	if err := h.chatRepo.RemoveMember(c.Request.Context(), chat.ID, target); err != nil {
		h.failWith(c, err, "could not remove member")
		return
	}

	h.emitAudit(c, "INFO", "Group member removed")
	c.Status(http.StatusNoContent)
}

// LeaveGroup removes the caller from the group.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	chat, ok := h.memberGroup(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.chatRepo.LeaveGroup(c.Request.Context(), chat.ID, uid); err != nil {
		h.failWith(c, err, "could not leave group")
		return
	}

	h.emitAudit(c, "INFO", "Group left")
	c.Status(http.StatusNoContent)
}

// DeleteGroup removes the group and its messages. Owner only.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	chat, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.chatRepo.DeleteGroup(c.Request.Context(), chat.ID, uid); err != nil {
		h.failWith(c, err, "could not delete group")
		return
	}

	h.emitAudit(c, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) memberGroup(c *gin.Context) (models.Chat, bool) {
	chat, err := h.chatRepo.GetChat(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "group not found"})
		return models.Chat{}, false
	}
	if chat.Kind != models.ChatKindGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group chat"})
		return models.Chat{}, false
	}
	if !chat.HasMember(c.GetString("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return models.Chat{}, false
	}
	return chat, true
}

func (h *GroupHandler) ownedGroup(c *gin.Context) (models.Chat, bool) {
	chat, ok := h.memberGroup(c)
	if !ok {
		return models.Chat{}, false
	}
	uid := c.GetString("userID")
	if chat.OwnerID == nil || *chat.OwnerID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "owner only"})
		return models.Chat{}, false
	}
	return chat, true
}

func (h *GroupHandler) failWith(c *gin.Context, err error, fallback string) {
	switch {
	case repositories.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrNotMember), errors.Is(err, repositories.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrNotGroup):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
