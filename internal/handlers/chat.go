package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/repositories"
	"github.com/zKaminise/Message-App/internal/storage"
	"github.com/zKaminise/Message-App/internal/telemetry"
	"github.com/zKaminise/Message-App/internal/visibility"
)

const pinSnippetMax = 80

// ChatHandler manages chat and message endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	blobs       storage.BlobStore
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, blobs storage.BlobStore, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		blobs:       blobs,
		audit:       audit,
	}
}

// StartDirectChat creates or returns the direct chat with another user.
func (h *ChatHandler) StartDirectChat(c *gin.Context) {
	var req struct {
		FriendID string `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := c.GetString("userID")
	chat, err := h.chatRepo.EnsureDirectChat(c.Request.Context(), uid, req.FriendID)
	if err != nil {
		h.failWith(c, err, "could not create chat")
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListChats returns the caller's chats split into active and hidden views.
func (h *ChatHandler) ListChats(c *gin.Context) {
	uid := c.GetString("userID")

	chats, err := h.chatRepo.ListChats(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	active, hidden := visibility.Split(chats, uid)
	c.JSON(http.StatusOK, gin.H{"active": active, "hidden": hidden})
}

// GetChat returns a single chat document.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, chat)
}

// GetChatMessages returns the chat's messages as the caller sees them.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	msgs, err := h.messageRepo.ListMessagesForUser(c.Request.Context(), chat.ID, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostTextMessage stores a text message.
func (h *ChatHandler) PostTextMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := c.GetString("userID")
	msg, err := h.messageRepo.SendText(c.Request.Context(), c.Param("chat_id"), uid, req.Text)
	if err != nil {
		h.failWith(c, err, "failed to store message")
		return
	}

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// PostMediaMessage uploads a blob and stores the message referencing it.
func (h *ChatHandler) PostMediaMessage(c *gin.Context) {
	chatID := c.Param("chat_id")
	uid := c.GetString("userID")

	kind := c.PostForm("kind")
	if !models.MediaKinds[kind] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported media kind"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	ref, err := storage.UploadMedia(c.Request.Context(), h.blobs, chatID, kind, uid, contentType, file)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}

	msg, err := h.messageRepo.SendMedia(c.Request.Context(), chatID, uid, kind, ref)
	if err != nil {
		h.failWith(c, err, "failed to store message")
		return
	}

	h.emitAudit(c, "INFO", "Media message sent")
	c.JSON(http.StatusCreated, msg)
}

// MarkChatRead stamps every unread incoming message as read by the caller.
func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.messageRepo.MarkAsRead(c.Request.Context(), chat.ID, uid); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark as read"})
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkMessageDelivered stamps one message as delivered to the caller.
func (h *ChatHandler) MarkMessageDelivered(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.messageRepo.MarkDelivered(c.Request.Context(), chat.ID, c.Param("message_id"), uid); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark as delivered"})
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteMessageForMe hides a message from the caller's view only.
func (h *ChatHandler) DeleteMessageForMe(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.messageRepo.HideMessageForUser(c.Request.Context(), chat.ID, c.Param("message_id"), uid); err != nil {
		h.failWith(c, err, "could not delete message")
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteMessageForAll turns a message into a tombstone for everyone.
func (h *ChatHandler) DeleteMessageForAll(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.messageRepo.DeleteMessageForAll(c.Request.Context(), chat.ID, c.Param("message_id"), uid); err != nil {
		h.failWith(c, err, "could not delete message")
		return
	}

	h.emitAudit(c, "INFO", "Message deleted for all")
	c.Status(http.StatusNoContent)
}

// PinMessage pins a message onto the chat header.
func (h *ChatHandler) PinMessage(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	var req struct {
		MessageID string `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), chat.ID, req.MessageID)
	if err != nil {
		h.failWith(c, err, "message not found")
		return
	}
	if msg.DeletedForAll {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot pin a deleted message"})
		return
	}

	if err := h.chatRepo.PinMessage(c.Request.Context(), chat.ID, msg.ID, pinSnippet(msg)); err != nil {
		h.failWith(c, err, "could not pin message")
		return
	}

	c.Status(http.StatusNoContent)
}

// UnpinMessage clears the chat's pin.
func (h *ChatHandler) UnpinMessage(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	if err := h.chatRepo.UnpinMessage(c.Request.Context(), chat.ID); err != nil {
		h.failWith(c, err, "could not unpin message")
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteChatForMe hides the chat from the caller's list.
func (h *ChatHandler) DeleteChatForMe(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.chatRepo.HideChatForUser(c.Request.Context(), chat.ID, uid); err != nil {
		h.failWith(c, err, "could not hide chat")
		return
	}

	c.Status(http.StatusNoContent)
}

// RestoreChat puts a hidden chat back into the caller's list.
func (h *ChatHandler) RestoreChat(c *gin.Context) {
	chat, ok := h.memberChat(c)
	if !ok {
		return
	}

	uid := c.GetString("userID")
	if err := h.chatRepo.UnhideChatForUser(c.Request.Context(), chat.ID, uid); err != nil {
		h.failWith(c, err, "could not restore chat")
		return
	}

	c.Status(http.StatusNoContent)
}

// memberChat loads the chat from the path and rejects non-members.
func (h *ChatHandler) memberChat(c *gin.Context) (models.Chat, bool) {
	chat, err := h.chatRepo.GetChat(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return models.Chat{}, false
	}
	if !chat.HasMember(c.GetString("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return models.Chat{}, false
	}
	return chat, true
}

func (h *ChatHandler) failWith(c *gin.Context, err error, fallback string) {
	switch {
	case repositories.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrChatNotFound), errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrNotMember), errors.Is(err, repositories.ErrNotOwner), errors.Is(err, repositories.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

// pinSnippet renders the denormalized preview stored next to a pin.
func pinSnippet(msg models.Message) string {
	if msg.Kind != models.MessageKindText {
		return "[" + msg.Kind + "]"
	}
	runes := []rune(msg.Text)
	if len(runes) > pinSnippetMax {
		return string(runes[:pinSnippetMax])
	}
	return msg.Text
}
