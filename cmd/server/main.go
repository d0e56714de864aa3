package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/orirot10/GIVEIT-sub000/internal/cache"
	"github.com/orirot10/GIVEIT-sub000/internal/config"
	"github.com/orirot10/GIVEIT-sub000/internal/handlers"
	"github.com/orirot10/GIVEIT-sub000/internal/handlers/ws"
	"github.com/orirot10/GIVEIT-sub000/internal/httpx"
	"github.com/orirot10/GIVEIT-sub000/internal/logger"
	"github.com/orirot10/GIVEIT-sub000/internal/middleware"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/orirot10/GIVEIT-sub000/internal/push"
	"github.com/orirot10/GIVEIT-sub000/internal/repository"
	"github.com/orirot10/GIVEIT-sub000/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logger.New(cfg.Log)
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := repository.InitDB(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	// Redis is optional; every cache is nil-safe.
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Ping(ctx); err != nil {
		zlog.Warn("redis unavailable, running without cache", zap.Error(err))
		_ = redisCache.Close()
		redisCache = nil
	} else {
		zlog.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
	}
	presenceCache := cache.NewPresenceCache(redisCache)
	profiles := cache.NewProfileCache(redisCache)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	endpointRepo := repository.NewPushEndpointRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	userService := service.NewUserService(userRepo, endpointRepo, profiles, zlog)

	dispatcher := push.NewDispatcher(userService, pushSenders(ctx, cfg.Push, zlog), cfg.Push.BodyMaxLength, zlog)
	pushQueue := push.NewQueue(dispatcher, cfg.Push.Workers, cfg.Push.QueueSize, cfg.Push.Timeout, zlog)

	hub := ws.NewHub(zlog)
	hub.OnLastDisconnect(func(userID uint) {
		zlog.Debug("user went offline on this instance", zap.Uint("user_id", userID))
	})

	var broadcaster service.Broadcaster = hub
	var relay *ws.NatsRelay
	if cfg.NATS.Enabled() {
		relay, err = ws.NewNatsRelay(cfg.NATS.URL, cfg.NATS.Name, hub, zlog)
		if err != nil {
			zlog.Warn("nats unavailable, broadcasting to local connections only", zap.Error(err))
		} else {
			broadcaster = relay
			zlog.Info("nats relay connected", zap.String("url", cfg.NATS.URL))
		}
	}

	// Without redis, presence only sees this instance's connections.
	var presence service.Presence = presenceCache
	if redisCache == nil {
		presence = ws.LocalPresence{Hub: hub}
	}

	conversationService := service.NewConversationService(
		conversationRepo,
		messageRepo,
		userRepo,
		pushQueue,
		broadcaster,
		presence,
		cfg.MaxMessageLength,
		zlog,
	)

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(conversationService, hub, presenceCache, zlog)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	userHandler := handlers.NewUserHandler(userService)

	app := fiber.New(fiber.Config{
		AppName:     "GIVEIT Messaging",
		BodyLimit:   1 * 1024 * 1024,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	// Protected routes
	api := app.Group("/api", middleware.OriginAllowed(cfg.Server.AllowedOrigins), middleware.AuthRequired(cfg.JWTSecret))
	api.Post("/conversations/open", conversationHandler.Open)
	api.Get("/conversations", conversationHandler.List)
	api.Get("/conversations/:id/messages", conversationHandler.GetMessages)
	api.Post(
		"/conversations/:id/messages",
		limiter.New(limiter.Config{
			Max:        60,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := httpx.LocalUint(c, "userID"); err == nil {
					return "send:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}),
		conversationHandler.SendMessage,
	)
	api.Post("/conversations/:id/read", conversationHandler.MarkRead)
	api.Get("/me/unread_total", conversationHandler.UnreadTotal)
	api.Post("/me/push-token", userHandler.RegisterPushToken)
	api.Delete("/me/push-token", userHandler.UnregisterPushToken)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(cfg.Server.AllowedOrigins),
		middleware.AuthRequired(cfg.JWTSecret),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"connections": hub.Count(),
		})
	})

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Warn("http shutdown", zap.Error(err))
		}
	}()

	zlog.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}

	// Pending notifications are flushed before the process exits.
	pushQueue.Close()
	if relay != nil {
		if err := relay.Close(); err != nil {
			zlog.Warn("nats drain", zap.Error(err))
		}
	}
	hub.Close()
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// pushSenders builds one sender per platform. A platform without credentials
// gets a sender that reports the provider as unavailable.
func pushSenders(ctx context.Context, cfg config.PushConfig, zlog *zap.Logger) map[models.Platform]push.Sender {
	senders := map[models.Platform]push.Sender{
		models.PlatformAndroid: push.UnavailableSender{},
		models.PlatformIOS:     push.UnavailableSender{},
	}

	if cfg.FCMEnabled() {
		fcm, err := push.NewFCMSender(ctx, cfg.FCMCredentialsFile, cfg.FCMProjectID)
		if err != nil {
			zlog.Warn("fcm disabled", zap.Error(err))
		} else {
			senders[models.PlatformAndroid] = fcm
		}
	}

	if cfg.APNsEnabled() {
		apns, err := push.NewAPNsSender(cfg.APNsKeyPath, cfg.APNsKeyID, cfg.APNsTeamID, cfg.APNsBundleID, cfg.APNsProduction)
		if err != nil {
			zlog.Warn("apns disabled", zap.Error(err))
		} else {
			senders[models.PlatformIOS] = apns
		}
	}

	return senders
}
