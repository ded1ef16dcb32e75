package main

import (
	"context"
	"log"

	"classline/config"
	"classline/internal/handler"
	appredis "classline/internal/redis"
	"classline/internal/repository"
	"classline/internal/server"
	"classline/internal/services"
	"classline/internal/storage"
	"classline/internal/websocket"
	"classline/pkg/database"
	"classline/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	defer l.Logger.Sync()
	logger.SetGlobalLogger(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.ApplyMigrations(ctx, pool, "migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	appredis.Initialize(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisClient := appredis.GetClient()

	s3Client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	uploadRepo := repository.NewUploadRepository(pool)

	publisher := services.NewEventPublisher(appredis.NewPublisher(redisClient), l)
	typingStore := appredis.NewTypingStore(redisClient, 0)
	limiter := appredis.NewRateLimiter(redisClient, appredis.DefaultRateLimitConfig())

	authService := services.NewAuthService(userRepo, cfg)
	conversationService := services.NewConversationService(conversationRepo, courseRepo, messageRepo, userRepo)
	courseService := services.NewCourseService(courseRepo, userRepo, conversationService)
	messageService := services.NewMessageService(messageRepo, conversationRepo, courseRepo, uploadRepo, publisher)
	typingService := services.NewTypingService(typingStore, conversationRepo, courseRepo, publisher)
	uploadService := services.NewUploadService(uploadRepo, s3Client)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(appredis.NewSubscriber(redisClient), hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			l.Errorf("Redis bridge stopped: %v", err)
		}
	}()

	authorizer := websocket.NewChannelAuthorizer(conversationRepo)
	socketHandler := websocket.NewHandler(authService, messageService, typingService, hub, authorizer)

	srv := server.New(cfg, l, pool)
	srv.SetupRoutes(&server.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Conversations: handler.NewConversationHandler(conversationService, messageService),
		Messages:      handler.NewMessageHandler(messageService),
		Courses:       handler.NewCourseHandler(courseService),
		Uploads:       handler.NewUploadHandler(uploadService),
		Socket:        socketHandler,
	}, authService, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
