package observe

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

func waitSnapshot(t *testing.T, sub *Subscription) any {
	t.Helper()
	select {
	case snap := <-sub.Out():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestChatListEmitsInitialSnapshot(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	b := NewBroker(chats, messages)

	chats.On("ListChats", mock.Anything, "alice").Return([]models.Chat{
		{ID: "alice_bob", Members: pq.StringArray{"alice", "bob"}},
		{ID: "alice_carol", Members: pq.StringArray{"alice", "carol"}, VisibleFor: pq.StringArray{"carol"}},
	}, nil)

	sub := b.ObserveChatList(context.Background(), "alice")
	defer sub.Close()

	snap := waitSnapshot(t, sub).(models.ChatListSnapshot)
	assert.Equal(t, models.SnapshotTypeChatList, snap.Type)
	require.Len(t, snap.Active, 1)
	require.Len(t, snap.Hidden, 1)
	assert.Equal(t, "alice_bob", snap.Active[0].ID)
	assert.Equal(t, "alice_carol", snap.Hidden[0].ID)
}

func TestWakeTriggersRequery(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	b := NewBroker(chats, messages)

	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Members: pq.StringArray{"alice", "bob"},
	}, nil)

	sub := b.ObserveChat(context.Background(), "alice_bob")
	defer sub.Close()

	first := waitSnapshot(t, sub).(models.ChatSnapshot)
	require.NotNil(t, first.Chat)

	b.wake("alice_bob")
	second := waitSnapshot(t, sub).(models.ChatSnapshot)
	require.NotNil(t, second.Chat)
	chats.AssertNumberOfCalls(t, "GetChat", 2)
}

func TestWakeIgnoresOtherChats(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	b := NewBroker(chats, messages)

	chats.On("GetChat", mock.Anything, "alice_bob").Return(models.Chat{
		ID:      "alice_bob",
		Members: pq.StringArray{"alice", "bob"},
	}, nil)

	sub := b.ObserveChat(context.Background(), "alice_bob")
	defer sub.Close()

	waitSnapshot(t, sub)
	b.wake("carol_dave")

	select {
	case <-sub.Out():
		t.Fatal("unrelated notification produced a snapshot")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLatestSnapshotWinsWhenConsumerLags(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	b := NewBroker(chats, messages)

	name := "first"
	chats.On("GetChat", mock.Anything, "g1").Return(models.Chat{
		ID:      "g1",
		Kind:    models.ChatKindGroup,
		Name:    &name,
		Members: pq.StringArray{"alice"},
	}, nil).Once()

	sub := b.ObserveChat(context.Background(), "g1")
	defer sub.Close()

	// Let the first snapshot land unread, then change state and wake.
	require.Eventually(t, func() bool { return len(sub.out) == 1 }, time.Second, 10*time.Millisecond)

	renamed := "second"
	chats.On("GetChat", mock.Anything, "g1").Return(models.Chat{
		ID:      "g1",
		Kind:    models.ChatKindGroup,
		Name:    &renamed,
		Members: pq.StringArray{"alice"},
	}, nil)
	b.wake("g1")

	require.Eventually(t, func() bool {
		select {
		case snap := <-sub.Out():
			got := snap.(models.ChatSnapshot)
			return got.Chat != nil && got.Chat.Name != nil && *got.Chat.Name == "second"
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestObserveMessagesStampsDelivery(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	b := NewBroker(chats, messages)

	stored := []models.Message{
		{ID: "m1", ChatID: "alice_bob", SenderID: "bob", Kind: models.MessageKindText},
		{ID: "m2", ChatID: "alice_bob", SenderID: "alice", Kind: models.MessageKindText},
		{ID: "m3", ChatID: "alice_bob", SenderID: "bob", Kind: models.MessageKindText,
			DeliveredTo: models.StampMap{"alice": time.Now()}},
	}
	messages.On("ListMessagesForUser", mock.Anything, "alice_bob", "alice").Return(stored, nil)
	messages.On("MarkDelivered", mock.Anything, "alice_bob", "m1", "alice").Return(nil)

	sub := b.ObserveMessages(context.Background(), "alice_bob", "alice")
	defer sub.Close()

	snap := waitSnapshot(t, sub).(models.MessagesSnapshot)
	assert.Len(t, snap.Messages, 3)

	// Only the undelivered incoming message gets stamped.
	time.Sleep(200 * time.Millisecond)
	messages.AssertCalled(t, "MarkDelivered", mock.Anything, "alice_bob", "m1", "alice")
	messages.AssertNotCalled(t, "MarkDelivered", mock.Anything, "alice_bob", "m2", "alice")
	messages.AssertNotCalled(t, "MarkDelivered", mock.Anything, "alice_bob", "m3", "alice")
}

func TestCloseUnregisters(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	b := NewBroker(chats, messages)

	chats.On("ListChats", mock.Anything, "alice").Return([]models.Chat{}, nil)

	sub := b.ObserveChatList(context.Background(), "alice")
	waitSnapshot(t, sub)

	b.mu.Lock()
	count := len(b.subs)
	b.mu.Unlock()
	assert.Equal(t, 1, count)

	sub.Close()
	b.mu.Lock()
	count = len(b.subs)
	b.mu.Unlock()
	assert.Equal(t, 0, count)
}
