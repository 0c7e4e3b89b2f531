package observe

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/observability"
	"github.com/zKaminise/Message-App/internal/repositories"
	"github.com/zKaminise/Message-App/internal/visibility"
)

// Subscription is one live view over the store. Snapshots arrive on Out;
// the channel keeps only the newest snapshot when the consumer lags.
type Subscription struct {
	broker  *Broker
	match   func(chatID string) bool
	refresh func(ctx context.Context) (any, error)

	dirty chan struct{}
	out   chan any
	done  chan struct{}
	once  sync.Once
}

// Out returns the snapshot channel. It is never closed; callers stop reading
// after Close.
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close detaches the subscription from the broker and stops its loop.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.unregister(s)
		close(s.done)
	})
}

func (s *Subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// emit replaces any pending snapshot with v.
func (s *Subscription) emit(v any) {
	for {
		select {
		case s.out <- v:
			return
		default:
			select {
			case <-s.out:
			default:
			}
		}
	}
}

func (s *Subscription) run(ctx context.Context) {
	for {
		snap, err := s.refresh(ctx)
		if err != nil {
			log.Printf("observe refresh failed: %v", err)
		} else {
			s.emit(snap)
			observability.IncSnapshotsEmitted()
		}

		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case <-s.dirty:
		}
	}
}

func (b *Broker) subscribe(ctx context.Context, match func(string) bool, refresh func(context.Context) (any, error)) *Subscription {
	sub := &Subscription{
		broker:  b,
		match:   match,
		refresh: refresh,
		dirty:   make(chan struct{}, 1),
		out:     make(chan any, 1),
		done:    make(chan struct{}),
	}
	b.register(sub)
	go sub.run(ctx)
	return sub
}

// ObserveChatList streams uid's partitioned chat list. Every notification
// wakes it: membership changes mean a chat the user was not in a moment ago
// can enter the list.
func (b *Broker) ObserveChatList(ctx context.Context, uid string) *Subscription {
	return b.subscribe(ctx,
		func(string) bool { return true },
		func(ctx context.Context) (any, error) {
			chats, err := b.chats.ListChats(ctx, uid)
			if err != nil {
				return nil, err
			}
			active, hidden := visibility.Split(chats, uid)
			return models.ChatListSnapshot{
				Type:   models.SnapshotTypeChatList,
				Active: active,
				Hidden: hidden,
			}, nil
		})
}

// ObserveChat streams a single chat document. A deleted chat emits a snapshot
// with a nil chat.
func (b *Broker) ObserveChat(ctx context.Context, chatID string) *Subscription {
	return b.subscribe(ctx,
		func(id string) bool { return id == chatID },
		func(ctx context.Context) (any, error) {
			chat, err := b.chats.GetChat(ctx, chatID)
			if errors.Is(err, repositories.ErrChatNotFound) {
				return models.ChatSnapshot{Type: models.SnapshotTypeChat}, nil
			}
			if err != nil {
				return nil, err
			}
			return models.ChatSnapshot{Type: models.SnapshotTypeChat, Chat: &chat}, nil
		})
}

// ObserveMessages streams the full message list of a chat as uid sees it.
// Observing implies receiving: after each snapshot, incoming messages not yet
// stamped for uid get their delivery acknowledgement in the background, which
// raises a fresh notification once stored.
func (b *Broker) ObserveMessages(ctx context.Context, chatID string, uid string) *Subscription {
	return b.subscribe(ctx,
		func(id string) bool { return id == chatID },
		func(ctx context.Context) (any, error) {
			messages, err := b.messages.ListMessagesForUser(ctx, chatID, uid)
			if err != nil {
				return nil, err
			}
			b.stampDelivered(messages, chatID, uid)
			return models.MessagesSnapshot{
				Type:     models.SnapshotTypeMessages,
				ChatID:   chatID,
				Messages: messages,
			}, nil
		})
}

func (b *Broker) stampDelivered(messages []models.Message, chatID string, uid string) {
	for _, msg := range messages {
		if msg.SenderID == uid || msg.DeletedForAll || msg.DeliveredToUser(uid) {
			continue
		}
		id := msg.ID
		go func() {
			if err := b.messages.MarkDelivered(context.Background(), chatID, id, uid); err != nil {
				log.Printf("delivery stamp failed chat_id=%s message_id=%s uid=%s: %v", chatID, id, uid, err)
			}
		}()
	}
}
