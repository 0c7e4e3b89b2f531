package ws

import (
	"context"
	"sync"

	"github.com/zKaminise/Message-App/internal/observe"
)

// Subscription kinds a client may ask for.
const (
	KindChatList = "chat_list"
	KindChat     = "chat"
	KindMessages = "messages"
)

// Client is one websocket session. It owns a registry of live subscriptions
// keyed by kind and target; subscribing again to the same key replaces the
// previous stream, so a client never receives two competing snapshot feeds
// for one view.
type Client struct {
	uid  string
	send chan any

	mu   sync.Mutex
	subs map[string]*entry
}

type entry struct {
	sub  *observe.Subscription
	stop chan struct{}
}

func NewClient(uid string, sendBuffer int) *Client {
	return &Client{
		uid:  uid,
		send: make(chan any, sendBuffer),
		subs: make(map[string]*entry),
	}
}

// Send returns the channel the writer loop drains.
func (cl *Client) Send() <-chan any {
	return cl.send
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// sendError reports a command failure in-band without blocking the session.
func (cl *Client) sendError(ctx context.Context, msg string) {
	select {
	case cl.send <- errorEvent{Type: "error", Error: msg}:
	case <-ctx.Done():
	default:
	}
}

func subKey(kind, target string) string {
	if target == "" {
		return kind
	}
	return kind + ":" + target
}

// Attach adopts a subscription under (kind, target), closing any previous
// one with the same key, and forwards its snapshots to the send channel.
func (cl *Client) Attach(ctx context.Context, kind, target string, sub *observe.Subscription) {
	e := &entry{sub: sub, stop: make(chan struct{})}

	cl.mu.Lock()
	key := subKey(kind, target)
	if prev, ok := cl.subs[key]; ok {
		prev.sub.Close()
		close(prev.stop)
	}
	cl.subs[key] = e
	cl.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case snap := <-sub.Out():
				select {
				case cl.send <- snap:
				case <-e.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// Detach closes the subscription under (kind, target) if one exists.
func (cl *Client) Detach(kind, target string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	key := subKey(kind, target)
	if e, ok := cl.subs[key]; ok {
		e.sub.Close()
		close(e.stop)
		delete(cl.subs, key)
	}
}

// CloseAll tears down every subscription of the session.
func (cl *Client) CloseAll() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for key, e := range cl.subs {
		e.sub.Close()
		close(e.stop)
		delete(cl.subs, key)
	}
}

// SubCount reports the number of live subscriptions.
func (cl *Client) SubCount() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.subs)
}
