package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zKaminise/Message-App/internal/mocks"
	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/repositories"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/chats/direct", handler.StartDirectChat)
	r.GET("/chats", handler.ListChats)
	r.GET("/chats/:chat_id", handler.GetChat)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostTextMessage)
	r.POST("/chats/:chat_id/read", handler.MarkChatRead)
	r.POST("/chats/:chat_id/pin", handler.PinMessage)
	r.DELETE("/chats/:chat_id/pin", handler.UnpinMessage)
	r.DELETE("/chats/:chat_id/messages/:message_id", handler.DeleteMessageForMe)
	r.DELETE("/chats/:chat_id/messages/:message_id/all", handler.DeleteMessageForAll)
	r.DELETE("/chats/:chat_id", handler.DeleteChatForMe)
	r.POST("/chats/:chat_id/restore", handler.RestoreChat)
	return r
}

func directChat() models.Chat {
	return models.Chat{
		ID:      "alice_bob",
		Kind:    models.ChatKindDirect,
		Members: pq.StringArray{"alice", "bob"},
	}
}

func TestStartDirectChatSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("EnsureDirectChat", mock.Anything, "alice", "bob").Return(directChat(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/direct", bytes.NewBufferString(`{"friend_id":"bob"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Chat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice_bob", resp.ID)
	chatRepo.AssertExpectations(t)
}

func TestStartDirectChatWithSelfRejected(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("EnsureDirectChat", mock.Anything, "alice", "alice").Return(models.Chat{}, repositories.ErrSelfChat).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/direct", bytes.NewBufferString(`{"friend_id":"alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListChatsPartitionsHidden(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListChats", mock.Anything, "alice").Return([]models.Chat{
		{ID: "alice_bob", Members: pq.StringArray{"alice", "bob"}},
		{ID: "alice_carol", Members: pq.StringArray{"alice", "carol"}, VisibleFor: pq.StringArray{"carol"}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Active []models.Chat `json:"active"`
		Hidden []models.Chat `json:"hidden"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Active, 1)
	require.Len(t, resp.Hidden, 1)
	assert.Equal(t, "alice_bob", resp.Active[0].ID)
	chatRepo.AssertExpectations(t)
}

func TestGetChatMessagesNonMemberForbidden(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "bob_carol").Return(models.Chat{
		ID:      "bob_carol",
		Members: pq.StringArray{"bob", "carol"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/bob_carol/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "ListMessagesForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostTextMessageSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	messageRepo.On("SendText", mock.Anything, "alice_bob", "alice", "hi").Return(models.Message{
		ID:       "m1",
		ChatID:   "alice_bob",
		SenderID: "alice",
		Kind:     models.MessageKindText,
		Text:     "hi",
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "hi", resp.Text)
	messageRepo.AssertExpectations(t)
}

func TestPostTextMessageNonMemberForbidden(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	messageRepo.On("SendText", mock.Anything, "bob_carol", "alice", "hi").Return(models.Message{}, repositories.ErrNotMember).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/bob_carol/messages", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkChatRead(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "alice_bob").Return(directChat(), nil).Once()
	messageRepo.On("MarkAsRead", mock.Anything, "alice_bob", "alice").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPinMessageStoresSnippet(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "alice_bob").Return(directChat(), nil).Once()
	messageRepo.On("GetMessage", mock.Anything, "alice_bob", "m1").Return(models.Message{
		ID:       "m1",
		ChatID:   "alice_bob",
		SenderID: "bob",
		Kind:     models.MessageKindText,
		Text:     "remember this",
	}, nil).Once()
	chatRepo.On("PinMessage", mock.Anything, "alice_bob", "m1", "remember this").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/pin", bytes.NewBufferString(`{"message_id":"m1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestPinDeletedMessageRejected(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "alice_bob").Return(directChat(), nil).Once()
	messageRepo.On("GetMessage", mock.Anything, "alice_bob", "m1").Return(models.Message{
		ID:            "m1",
		ChatID:        "alice_bob",
		DeletedForAll: true,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/alice_bob/pin", bytes.NewBufferString(`{"message_id":"m1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	chatRepo.AssertNotCalled(t, "PinMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageForAllSenderOnly(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "alice_bob").Return(directChat(), nil).Once()
	messageRepo.On("DeleteMessageForAll", mock.Anything, "alice_bob", "m1", "alice").Return(repositories.ErrNotSender).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/alice_bob/messages/m1/all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageForMe(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "alice_bob").Return(directChat(), nil).Once()
	messageRepo.On("HideMessageForUser", mock.Anything, "alice_bob", "m1", "alice").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/alice_bob/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestHideAndRestoreChat(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "alice_bob").Return(directChat(), nil).Twice()
	chatRepo.On("HideChatForUser", mock.Anything, "alice_bob", "alice").Return(nil).Once()
	chatRepo.On("UnhideChatForUser", mock.Anything, "alice_bob", "alice").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/alice_bob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/chats/alice_bob/restore", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	chatRepo.AssertExpectations(t)
}

func TestGetChatNotFound(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, "missing").Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPinSnippetTruncates(t *testing.T) {
	long := make([]rune, 0, 120)
	for i := 0; i < 120; i++ {
		long = append(long, 'x')
	}
	msg := models.Message{Kind: models.MessageKindText, Text: string(long)}

	snippet := pinSnippet(msg)

	assert.Len(t, []rune(snippet), pinSnippetMax)
}

func TestPinSnippetMediaUsesKindTag(t *testing.T) {
	msg := models.Message{Kind: models.MessageKindImage}

	assert.Equal(t, "[image]", pinSnippet(msg))
}
