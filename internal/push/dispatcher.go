// Package push turns committed message events into device notifications.
// It consumes the broker queue the message repository publishes to, so a
// notification is only ever dispatched for a message that is durably stored.
package push

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zKaminise/Message-App/internal/models"
	"github.com/zKaminise/Message-App/internal/observability"
	"github.com/zKaminise/Message-App/internal/rabbitmq"
	"github.com/zKaminise/Message-App/internal/repositories"
)

// Tokens per provider request.
const sendBatchSize = 500

// Dispatcher fans a message event out to every chat member except the
// sender.
type Dispatcher struct {
	chats    repositories.ChatRepository
	users    repositories.UserRepository
	cache    TokenCache
	sender   Sender
	consumer rabbitmq.Consumer
}

func NewDispatcher(chats repositories.ChatRepository, users repositories.UserRepository, cache TokenCache, sender Sender, consumer rabbitmq.Consumer) *Dispatcher {
	return &Dispatcher{chats: chats, users: users, cache: cache, sender: sender, consumer: consumer}
}

// Run consumes message events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.consumer.Consume(ctx, func(routingKey string, body []byte) {
		if routingKey != repositories.RoutingKeyMessageCreated {
			return
		}
		var event models.MessageCreatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			log.Printf("push dispatch: bad event payload: %v", err)
			return
		}
		if err := d.Dispatch(ctx, event); err != nil {
			log.Printf("push dispatch failed chat_id=%s message_id=%s: %v", event.ChatID, event.MessageID, err)
		}
	})
}

// Dispatch sends one notification round for a stored message.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.MessageCreatedEvent) error {
	chat, err := d.chats.GetChat(ctx, event.ChatID)
	if err != nil {
		return err
	}

	recipients := make([]string, 0, len(chat.Members))
	for _, uid := range chat.Members {
		if uid != event.SenderID {
			recipients = append(recipients, uid)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	tokens, err := d.collectTokens(ctx, recipients)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"chatId":    event.ChatID,
		"messageId": event.MessageID,
		"senderId":  event.SenderID,
		"kind":      event.Kind,
	}
	if sender, err := d.users.GetUser(ctx, event.SenderID); err == nil && sender.DisplayName != "" {
		data["senderName"] = sender.DisplayName
	}
	if chat.Kind == models.ChatKindGroup && chat.Name != nil {
		data["chatName"] = *chat.Name
	}

	var invalid []string
	for start := 0; start < len(tokens); start += sendBatchSize {
		end := start + sendBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		bad, err := d.sender.Send(ctx, tokens[start:end], data)
		if err != nil {
			observability.IncPushSent("error")
			return err
		}
		observability.IncPushSent("ok")
		invalid = append(invalid, bad...)
	}

	if len(invalid) > 0 {
		d.prune(ctx, recipients, invalid)
	}
	return nil
}

// collectTokens gathers the deduplicated token set of all recipients,
// serving from the cache where it can.
func (d *Dispatcher) collectTokens(ctx context.Context, recipients []string) ([]string, error) {
	byUser := make(map[string][]string, len(recipients))
	missing := make([]string, 0, len(recipients))
	for _, uid := range recipients {
		if tokens, ok := d.cache.Get(ctx, uid); ok {
			byUser[uid] = tokens
		} else {
			missing = append(missing, uid)
		}
	}

	if len(missing) > 0 {
		users, err := d.users.GetUsersByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			byUser[user.UID] = user.FCMTokens
			d.cache.Set(ctx, user.UID, user.FCMTokens)
		}
	}

	seen := map[string]bool{}
	tokens := []string{}
	for _, uid := range recipients {
		for _, token := range byUser[uid] {
			if token == "" || seen[token] {
				continue
			}
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

// prune drops permanently rejected tokens from the store and invalidates the
// cache entries that may still carry them.
func (d *Dispatcher) prune(ctx context.Context, recipients []string, invalid []string) {
	if err := d.users.RemoveDeviceTokens(ctx, invalid); err != nil {
		log.Printf("push token prune failed: %v", err)
		return
	}
	observability.AddPushTokensPruned(len(invalid))
	for _, uid := range recipients {
		d.cache.Invalidate(ctx, uid)
	}
}
