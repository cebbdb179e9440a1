package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"discussion-service/internal/auth"
	"discussion-service/internal/bus"
	"discussion-service/internal/config"
	"discussion-service/internal/db"
	"discussion-service/internal/handlers"
	"discussion-service/internal/middleware"
	"discussion-service/internal/observability"
	"discussion-service/internal/pipeline"
	"discussion-service/internal/presence"
	"discussion-service/internal/repositories"
	"discussion-service/internal/telemetry"
	"discussion-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	if cfg.AMQP.URL != "" {
		publisher, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Printf("amqp publisher unavailable, events disabled: %v", err)
		} else {
			observability.SetPublisher(publisher)
			defer publisher.Close()
		}
	}

	userRepo := repositories.NewUserRepo(database)
	topicRepo := repositories.NewTopicRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	blockRepo := repositories.NewBlockRepo(database)

	presenceStore := presence.NewStore(cfg.Presence.TTL)
	go presenceStore.Run(ctx, time.Minute)

	hub := ws.NewHub()
	broadcaster := pipeline.Broadcaster(hub)
	if cfg.AMQP.URL != "" {
		broadcaster = bus.Fanout{hub, bus.NewBroadcaster(cfg.AMQP.URL, cfg.AMQP.Exchange)}
	}

	sendPipeline := pipeline.New(userRepo, topicRepo, chatRepo, messageRepo, broadcaster)

	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)
	gateway := ws.NewGateway(hub, presenceStore, verifier, sendPipeline, topicRepo, chatRepo)

	messageHandler := handlers.NewMessageHandler(sendPipeline, topicRepo, chatRepo, messageRepo)
	chatHandler := handlers.NewChatHandler(chatRepo, blockRepo, presenceStore)
	blockHandler := handlers.NewBlockHandler(blockRepo)
	topicHandler := handlers.NewTopicHandler(topicRepo)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The gateway authenticates during the handshake itself, so it sits
	// outside the HTTP auth middleware.
	router.GET("/chat", gateway.Handle)

	authMiddleware := middleware.AuthMiddleware(verifier)
	api := router.Group("/chat", authMiddleware)
	api.POST("/messages", messageHandler.PostMessage)
	api.GET("/messages", messageHandler.GetMessages)
	api.POST("/direct", chatHandler.StartDirectChat)
	api.GET("/conversations", chatHandler.ListConversations)
	api.GET("/online", chatHandler.ListOnline)
	api.POST("/block", blockHandler.Block)
	api.DELETE("/block/:blocked_id", blockHandler.Unblock)
	api.GET("/blocked", blockHandler.ListBlocked)
	api.POST("/topics", topicHandler.CreateTopic)
	api.GET("/topics", topicHandler.ListTopics)
	api.DELETE("/topics/:topic_id", topicHandler.DeleteTopic)

	auditEmitter := telemetry.NewAuditEmitter("events.audit", cfg.Telemetry.ServiceName, cfg.Server.Environment)
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.Server.Debug)

	log.Printf("listening on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
