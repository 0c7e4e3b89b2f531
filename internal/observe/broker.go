// Package observe turns committed chat mutations into live full-snapshot
// streams. Mutations raise a Postgres notification on the same transaction
// that commits them, so a delivered notification always refers to visible
// state; each stream re-queries its whole view and emits a replacement
// snapshot.
package observe

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/zKaminise/Message-App/internal/db"
	"github.com/zKaminise/Message-App/internal/observability"
	"github.com/zKaminise/Message-App/internal/repositories"
)

const (
	listenMinReconnect = time.Second
	listenMaxReconnect = 30 * time.Second
	listenPingInterval = 90 * time.Second
)

// Broker listens for chat change notifications and fans them out to
// subscriptions.
type Broker struct {
	listener *pq.Listener
	chats    repositories.ChatRepository
	messages repositories.MessageRepository

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroker returns a broker serving snapshots from the given repositories.
// Call Connect before Run to attach the LISTEN session.
func NewBroker(chats repositories.ChatRepository, messages repositories.MessageRepository) *Broker {
	return &Broker{
		chats:    chats,
		messages: messages,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Connect opens a dedicated LISTEN session on the change channel.
func (b *Broker) Connect(dsn string) error {
	listener := pq.NewListener(dsn, listenMinReconnect, listenMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("observe listener event=%d: %v", ev, err)
		}
	})
	if err := listener.Listen(db.NotifyChannel); err != nil {
		listener.Close()
		return err
	}
	b.listener = listener
	return nil
}

// Run pumps notifications until ctx is done. A nil notification signals a
// reconnect, after which every subscription re-queries since changes may have
// been missed.
func (b *Broker) Run(ctx context.Context) {
	defer b.listener.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-b.listener.Notify:
			if n == nil {
				b.wakeAll()
				continue
			}
			b.wake(n.Extra)
		case <-time.After(listenPingInterval):
			if err := b.listener.Ping(); err != nil {
				log.Printf("observe listener ping: %v", err)
			}
		}
	}
}

func (b *Broker) wake(chatID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.match(chatID) {
			sub.markDirty()
		}
	}
}

func (b *Broker) wakeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		sub.markDirty()
	}
}

func (b *Broker) register(sub *Subscription) {
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	observability.SetActiveSubscriptions(count)
}

func (b *Broker) unregister(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	count := len(b.subs)
	b.mu.Unlock()
	observability.SetActiveSubscriptions(count)
}
