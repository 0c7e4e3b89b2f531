package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/zKaminise/Message-App/internal/auth"
	"github.com/zKaminise/Message-App/internal/crypto"
	"github.com/zKaminise/Message-App/internal/db"
	"github.com/zKaminise/Message-App/internal/handlers"
	"github.com/zKaminise/Message-App/internal/middleware"
	"github.com/zKaminise/Message-App/internal/observability"
	"github.com/zKaminise/Message-App/internal/observe"
	"github.com/zKaminise/Message-App/internal/push"
	"github.com/zKaminise/Message-App/internal/rabbitmq"
	"github.com/zKaminise/Message-App/internal/repositories"
	"github.com/zKaminise/Message-App/internal/storage"
	"github.com/zKaminise/Message-App/internal/telemetry"
	"github.com/zKaminise/Message-App/internal/ws"
)

const serviceName = "message-app"

func main() {
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	box, err := crypto.NewBoxFromKeysCSV(os.Getenv("MESSAGE_KEYS"))
	if err != nil {
		log.Fatalf("failed to load message keys: %v", err)
	}

	blobs, err := storage.NewS3Store(ctx)
	if err != nil {
		log.Fatalf("failed to set up blob store: %v", err)
	}
	markers := storage.NewMarkers(blobs)

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "message-app")
	publisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	if amqpURL != "" {
		if wsEvents, err := observability.NewAMQPPublisher(amqpURL, getEnv("AMQP_WS_EXCHANGE", exchange+".events")); err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(wsEvents)
			defer wsEvents.Close()
		}
	}

	chatRepo := repositories.NewChatRepo(database, markers)
	messageRepo := repositories.NewMessageRepo(database, box, publisher)
	userRepo := repositories.NewUserRepo(database)

	broker := observe.NewBroker(chatRepo, messageRepo)
	if err := broker.Connect(db.DSN()); err != nil {
		log.Fatalf("failed to attach change listener: %v", err)
	}
	go broker.Run(ctx)

	tokenCache := newTokenCache()
	sender := push.NewFCMSender(os.Getenv("FCM_SERVER_KEY"))
	consumer := rabbitmq.NewConsumer(amqpURL, exchange, getEnv("AMQP_PUSH_QUEUE", "message-app.push"), repositories.RoutingKeyMessageCreated)
	defer consumer.Close()
	dispatcher := push.NewDispatcher(chatRepo, userRepo, tokenCache, sender, consumer)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("push dispatcher stopped: %v", err)
		}
	}()

	provider, err := auth.NewJWTVerifier()
	if err != nil {
		log.Fatalf("failed to set up auth: %v", err)
	}

	audit := telemetry.NewAuditEmitter(publisher, getEnv("AUDIT_ROUTING_KEY", "audit.message-app"), serviceName, getEnv("ENVIRONMENT", "dev"))

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, blobs, audit)
	groupHandler := handlers.NewGroupHandler(chatRepo, audit)
	userHandler := handlers.NewUserHandler(userRepo, tokenCache)
	wsHandler := ws.NewHandler(broker, chatRepo, userRepo, provider)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, os.Getenv("DEBUG_ROUTES") == "true")

	authMiddleware := middleware.AuthMiddleware(provider)

	router.POST("/chats/direct", authMiddleware, chatHandler.StartDirectChat)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostTextMessage)
	router.POST("/chats/:chat_id/media", authMiddleware, chatHandler.PostMediaMessage)
	router.POST("/chats/:chat_id/read", authMiddleware, chatHandler.MarkChatRead)
	router.POST("/chats/:chat_id/messages/:message_id/delivered", authMiddleware, chatHandler.MarkMessageDelivered)
	router.DELETE("/chats/:chat_id/messages/:message_id", authMiddleware, chatHandler.DeleteMessageForMe)
	router.DELETE("/chats/:chat_id/messages/:message_id/all", authMiddleware, chatHandler.DeleteMessageForAll)
	router.POST("/chats/:chat_id/pin", authMiddleware, chatHandler.PinMessage)
	router.DELETE("/chats/:chat_id/pin", authMiddleware, chatHandler.UnpinMessage)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChatForMe)
	router.POST("/chats/:chat_id/restore", authMiddleware, chatHandler.RestoreChat)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.PATCH("/groups/:chat_id", authMiddleware, groupHandler.UpdateGroup)
	router.POST("/groups/:chat_id/members", authMiddleware, groupHandler.AddMembers)
	router.DELETE("/groups/:chat_id/members/:uid", authMiddleware, groupHandler.RemoveMember)
	router.POST("/groups/:chat_id/leave", authMiddleware, groupHandler.LeaveGroup)
	router.DELETE("/groups/:chat_id", authMiddleware, groupHandler.DeleteGroup)

	router.PUT("/users/me", authMiddleware, userHandler.UpdateProfile)
	router.POST("/users/me/tokens", authMiddleware, userHandler.RegisterDeviceToken)
	router.GET("/users", authMiddleware, userHandler.GetUsers)

	router.GET("/ws", wsHandler.Handle)

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newTokenCache() push.TokenCache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Printf("token cache disabled: REDIS_ADDR not set")
		return push.NoopTokenCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	ttl := 10 * time.Minute
	if raw := os.Getenv("PUSH_TOKEN_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}
	return push.NewRedisTokenCache(client, ttl)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
