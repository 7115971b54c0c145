package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/api"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/chat"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/email"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/friends"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/logger"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/media"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/presence"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/store"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic("load config: " + err.Error())
	}

	log, err := logger.New(logger.Config{Development: cfg.Server.Development})
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := store.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal("mongo", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.Mongo.Database)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	publisher := events.NewKafkaPublisher(cfg.Kafka, log)
	defer publisher.Close()

	users := store.NewUsers(db)
	edges := store.NewFriendEdges(db)
	blocks := store.NewBlocks(db)
	messages := store.NewMessages(db)
	inbox := store.NewInbox(db)
	deviceTokens := store.NewDeviceTokens(db)
	deleter := store.NewDeleter(mongoClient, db)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg := registry.New()
	tracker := presence.NewTracker(reg,
		presence.NewRedisStore(redisClient, cfg.Redis.Prefix), publisher, log)
	go tracker.Run(ctx)

	var push notify.PushClient = notify.NewFCMClient(cfg.Notification.PushServerKey)
	push = notify.NewBreakerClient(push)
	metrics := notify.NewMetrics(promReg)
	router := notify.NewRouter(cfg.Notification, reg, deviceTokens, inbox, push, metrics, log)
	tokenRegistry := notify.NewTokenRegistry(deviceTokens, cfg.Notification.MaxDeviceTokens, log)

	gate := friends.NewGate(edges, blocks)
	chatSvc := chat.NewService(messages, users, gate, reg, router, publisher, log)
	friendSvc := friends.NewService(edges, blocks, users, messages, gate, reg, tracker, router, log)

	mailer := email.NewSender(cfg.Email, log)
	tokens, err := auth.NewTokenManager(cfg.JWT, cfg.TokenExpiry)
	if err != nil {
		log.Fatal("jwt", zap.Error(err))
	}
	authSvc := auth.NewService(users, mailer, deleterAdapter{deleter}, reg, router, cfg.StoreTimeout, log)

	uploader, err := media.NewUploader(ctx, cfg.S3)
	if err != nil {
		log.Fatal("s3", zap.Error(err))
	}

	app := api.New(*cfg, api.Deps{
		Auth:          api.NewAuthHandlers(authSvc, tokens, uploader, cfg.JWT.SecureCookie, log),
		Friends:       api.NewFriendHandlers(friendSvc, log),
		Chat:          api.NewChatHandlers(chatSvc, uploader, log),
		Notifications: api.NewNotificationHandlers(inbox, tokenRegistry, metrics, log),
		WS:            ws.NewHandler(tokens, reg, tracker, log),
		Tokens:        tokens,
		RateLimiter:   api.NewRateLimiter(redisClient, cfg.Redis.Prefix, cfg.Server.RateLimitPerMinute),
		PromRegistry:  promReg,
		Log:           log,
	})

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal("listen", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}

// deleterAdapter maps the store result onto the auth-facing shape.
type deleterAdapter struct {
	inner *store.Deleter
}

func (a deleterAdapter) DeleteAccount(ctx context.Context, userID string) (*auth.DeletionResult, error) {
	res, err := a.inner.DeleteAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &auth.DeletionResult{Partners: res.Partners, DeletedAt: res.DeletedAt}, nil
}
