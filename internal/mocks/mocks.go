package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/repositories"
	"github.com/zKaminise/Message-App/internal/storage"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) EnsureDirectChat(ctx context.Context, uid string, friendUID string) (models.Chat, error) {
	args := m.Called(ctx, uid, friendUID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, uid string) ([]models.Chat, error) {
	args := m.Called(ctx, uid)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) IsMember(ctx context.Context, chatID string, uid string) (bool, error) {
	args := m.Called(ctx, chatID, uid)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) CreateGroup(ctx context.Context, name string, ownerID string, memberIDs []string, photoURL *string) (models.Chat, error) {
	args := m.Called(ctx, name, ownerID, memberIDs, photoURL)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) RenameGroup(ctx context.Context, chatID string, name string) error {
	args := m.Called(ctx, chatID, name)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UpdateGroupMeta(ctx context.Context, chatID string, update models.GroupMetaUpdate) error {
	args := m.Called(ctx, chatID, update)
	return args.Error(0)
}

func (m *ChatRepositoryMock) AddMembers(ctx context.Context, chatID string, uids []string) error {
	args := m.Called(ctx, chatID, uids)
	return args.Error(0)
}

func (m *ChatRepositoryMock) RemoveMember(ctx context.Context, chatID string, uid string) error {
	args := m.Called(ctx, chatID, uid)
	return args.Error(0)
}

func (m *ChatRepositoryMock) LeaveGroup(ctx context.Context, chatID string, uid string) error {
	args := m.Called(ctx, chatID, uid)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteGroup(ctx context.Context, chatID string, ownerID string) error {
	args := m.Called(ctx, chatID, ownerID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) HideChatForUser(ctx context.Context, chatID string, uid string) error {
	args := m.Called(ctx, chatID, uid)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnhideChatForUser(ctx context.Context, chatID string, uid string) error {
	args := m.Called(ctx, chatID, uid)
	return args.Error(0)
}

func (m *ChatRepositoryMock) PinMessage(ctx context.Context, chatID string, messageID string, snippet string) error {
	args := m.Called(ctx, chatID, messageID, snippet)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnpinMessage(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) SendText(ctx context.Context, chatID string, senderID string, text string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SendMedia(ctx context.Context, chatID string, senderID string, kind string, mediaRef string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, kind, mediaRef)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessagesForUser(ctx context.Context, chatID string, uid string) ([]models.Message, error) {
	args := m.Called(ctx, chatID, uid)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, chatID string, messageID string) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkAsRead(ctx context.Context, chatID string, uid string) error {
	args := m.Called(ctx, chatID, uid)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, chatID string, messageID string, uid string) error {
	args := m.Called(ctx, chatID, messageID, uid)
	return args.Error(0)
}

func (m *MessageRepositoryMock) HideMessageForUser(ctx context.Context, chatID string, messageID string, uid string) error {
	args := m.Called(ctx, chatID, messageID, uid)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteMessageForAll(ctx context.Context, chatID string, messageID string, senderID string) error {
	args := m.Called(ctx, chatID, messageID, senderID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, uid string) (models.User, error) {
	args := m.Called(ctx, uid)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUsersByIDs(ctx context.Context, uids []string) ([]models.User, error) {
	args := m.Called(ctx, uids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpsertProfile(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) AddDeviceToken(ctx context.Context, uid string, token string) error {
	args := m.Called(ctx, uid, token)
	return args.Error(0)
}

func (m *UserRepositoryMock) RemoveDeviceTokens(ctx context.Context, tokens []string) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetPresence(ctx context.Context, uid string, online bool) error {
	args := m.Called(ctx, uid, online)
	return args.Error(0)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}

func (m *BlobStoreMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MarkerManagerMock struct {
	mock.Mock
}

func (m *MarkerManagerMock) EnsureMemberMarker(ctx context.Context, chatID string, uid string) {
	m.Called(ctx, chatID, uid)
}

func (m *MarkerManagerMock) RemoveMemberMarker(ctx context.Context, chatID string, uid string) {
	m.Called(ctx, chatID, uid)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ storage.BlobStore = (*BlobStoreMock)(nil)
var _ storage.MarkerManager = (*MarkerManagerMock)(nil)
