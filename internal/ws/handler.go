package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/zKaminise/Message-App/internal/auth"
	"github.com/zKaminise/Message-App/internal/observability"
	"github.com/zKaminise/Message-App/internal/observe"
	"github.com/zKaminise/Message-App/internal/repositories"
)

const sendBufferSize = 16

// Handler upgrades websocket sessions and serves snapshot subscriptions over
// them.
type Handler struct {
	broker   *observe.Broker
	chats    repositories.ChatRepository
	users    repositories.UserRepository
	provider auth.IdentityProvider
}

// NewHandler constructs a Handler.
func NewHandler(broker *observe.Broker, chats repositories.ChatRepository, users repositories.UserRepository, provider auth.IdentityProvider) *Handler {
	return &Handler{broker: broker, chats: chats, users: users, provider: provider}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// command is what a client sends over the socket.
type command struct {
	Action string `json:"action"`
	Kind   string `json:"kind"`
	ChatID string `json:"chat_id"`
}

// Handle authenticates, upgrades and runs one session. The client drives its
// subscriptions with subscribe/unsubscribe commands; every subscription
// streams full replacement snapshots until replaced or the socket closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("message-app/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	uid, err := h.validateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      uid,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive("chat")
	publishWSEvent(ctx, "ws_connect", info, "")
	if err := h.users.SetPresence(ctx, uid, true); err != nil {
		log.Printf("presence online failed uid=%s: %v", uid, err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	client := NewClient(uid, sendBufferSize)

	go h.writeLoop(sessionCtx, conn, client)
	go h.readLoop(sessionCtx, cancel, conn, client, info)
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-client.Send():
			if err := conn.WriteJSON(snap); err != nil {
				log.Printf("websocket write error: %v", err)
				conn.Close()
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client, info ConnInfo) {
	var closeReason string
	defer func() {
		cancel()
		client.CloseAll()
		conn.Close()
		observability.DecWSActive("chat")
		publishWSEvent(context.Background(), "ws_disconnect", info, closeReason)
		if err := h.users.SetPresence(context.Background(), client.uid, false); err != nil {
			log.Printf("presence offline failed uid=%s: %v", client.uid, err)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishWSEvent(context.Background(), "ws_error", info, closeReason)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			client.sendError(ctx, "bad command")
			continue
		}
		if err := h.apply(ctx, client, cmd); err != nil {
			client.sendError(ctx, err.Error())
		}
	}
}

func (h *Handler) apply(ctx context.Context, client *Client, cmd command) error {
	switch cmd.Action {
	case "subscribe":
		return h.subscribe(ctx, client, cmd)
	case "unsubscribe":
		client.Detach(cmd.Kind, cmd.ChatID)
		return nil
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

func (h *Handler) subscribe(ctx context.Context, client *Client, cmd command) error {
	switch cmd.Kind {
	case KindChatList:
		client.Attach(ctx, KindChatList, "", h.broker.ObserveChatList(ctx, client.uid))
		return nil
	case KindChat, KindMessages:
		if cmd.ChatID == "" {
			return fmt.Errorf("chat_id is required")
		}
		member, err := h.chats.IsMember(ctx, cmd.ChatID, client.uid)
		if err != nil {
			return fmt.Errorf("membership check failed")
		}
		if !member {
			return fmt.Errorf("not a chat member")
		}
		if cmd.Kind == KindChat {
			client.Attach(ctx, KindChat, cmd.ChatID, h.broker.ObserveChat(ctx, cmd.ChatID))
		} else {
			client.Attach(ctx, KindMessages, cmd.ChatID, h.broker.ObserveMessages(ctx, cmd.ChatID, client.uid))
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", cmd.Kind)
	}
}

func (h *Handler) validateToken(ctx context.Context, header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.provider.ValidateToken(ctx, parts[1])
	}
	return "", fmt.Errorf("invalid token")
}
