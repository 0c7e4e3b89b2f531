package push

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zKaminise/Message-App/internal/mocks"
	"github.com/zKaminise/Message-App/internal/models"
)

type fakeSender struct {
	sent    [][]string
	data    []map[string]string
	invalid []string
}

func (f *fakeSender) Send(ctx context.Context, tokens []string, data map[string]string) ([]string, error) {
	f.sent = append(f.sent, tokens)
	f.data = append(f.data, data)
	return f.invalid, nil
}

func event() models.MessageCreatedEvent {
	return models.MessageCreatedEvent{
		ChatID:    "alice_bob",
		MessageID: "m1",
		SenderID:  "alice",
		Kind:      models.MessageKindText,
		CreatedAt: time.Now(),
	}
}

func TestDispatchSkipsSenderAndDedupesTokens(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender := &fakeSender{}
	d := NewDispatcher(chats, users, NoopTokenCache{}, sender, nil)

	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Kind:    models.ChatKindDirect,
		Members: pq.StringArray{"alice", "bob"},
	}, nil)
	users.On("GetUsersByIDs", mock.Anything, []string{"bob"}).Return([]models.User{
		{UID: "bob", FCMTokens: pq.StringArray{"t1", "t1", "t2", ""}},
	}, nil)
	users.On("GetUser", mock.Anything, "alice").Return(models.User{UID: "alice", DisplayName: "Alice"}, nil)

	err := d.Dispatch(context.Background(), event())

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"t1", "t2"}, sender.sent[0])
	assert.Equal(t, "alice_bob", sender.data[0]["chatId"])
	assert.Equal(t, "Alice", sender.data[0]["senderName"])
	chats.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestDispatchNoRecipientsSendsNothing(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender := &fakeSender{}
	d := NewDispatcher(chats, users, NoopTokenCache{}, sender, nil)

	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Members: pq.StringArray{"alice"},
	}, nil)

	err := d.Dispatch(context.Background(), event())

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
	users.AssertNotCalled(t, "GetUsersByIDs", mock.Anything, mock.Anything)
}

func TestDispatchNoTokensSendsNothing(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender := &fakeSender{}
	d := NewDispatcher(chats, users, NoopTokenCache{}, sender, nil)

	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Members: pq.StringArray{"alice", "bob"},
	}, nil)
	users.On("GetUsersByIDs", mock.Anything, []string{"bob"}).Return([]models.User{
		{UID: "bob"},
	}, nil)

	err := d.Dispatch(context.Background(), event())

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestDispatchPrunesInvalidTokens(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender := &fakeSender{invalid: []string{"dead"}}
	d := NewDispatcher(chats, users, NoopTokenCache{}, sender, nil)

	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Members: pq.StringArray{"alice", "bob"},
	}, nil)
	users.On("GetUsersByIDs", mock.Anything, []string{"bob"}).Return([]models.User{
		{UID: "bob", FCMTokens: pq.StringArray{"dead", "live"}},
	}, nil)
	users.On("GetUser", mock.Anything, "alice").Return(models.User{}, assert.AnError)
	users.On("RemoveDeviceTokens", mock.Anything, []string{"dead"}).Return(nil)

	err := d.Dispatch(context.Background(), event())

	require.NoError(t, err)
	users.AssertCalled(t, "RemoveDeviceTokens", mock.Anything, []string{"dead"})
}

func TestDispatchGroupChatIncludesChatName(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender := &fakeSender{}
	d := NewDispatcher(chats, users, NoopTokenCache{}, sender, nil)

	name := "team"
	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Kind:    models.ChatKindGroup,
		Name:    &name,
		Members: pq.StringArray{"alice", "bob", "carol"},
	}, nil)
	users.On("GetUsersByIDs", mock.Anything, []string{"bob", "carol"}).Return([]models.User{
		{UID: "bob", FCMTokens: pq.StringArray{"t1"}},
		{UID: "carol", FCMTokens: pq.StringArray{"t2"}},
	}, nil)
	users.On("GetUser", mock.Anything, "alice").Return(models.User{}, assert.AnError)

	err := d.Dispatch(context.Background(), event())

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.ElementsMatch(t, []string{"t1", "t2"}, sender.sent[0])
	assert.Equal(t, "team", sender.data[0]["chatName"])
}
