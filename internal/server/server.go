package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classline/config"
	"classline/internal/handler"
	"classline/internal/middleware"
	"classline/internal/redis"
	"classline/internal/services"
	"classline/internal/transport/httpdto"
	"classline/internal/websocket"
	"classline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	pool       *pgxpool.Pool
}

type Handlers struct {
	Auth          *handler.AuthHandler
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Courses       *handler.CourseHandler
	Uploads       *handler.UploadHandler
	Socket        *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger, pool *pgxpool.Pool) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		pool:   pool,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.pool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	auth := s.engine.Group("/v1/auth")
	auth.Use(middleware.RateLimitMiddleware(limiter))
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	api := s.engine.Group("/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.GET("/conversations", handlers.Conversations.List)
		api.POST("/conversations", handlers.Conversations.Create)
		api.PATCH("/conversations/:id", handlers.Conversations.Patch)
		api.PUT("/conversations/:id/read", handlers.Conversations.MarkRead)
		api.GET("/conversations/:id/reactions", handlers.Conversations.Reactions)
		api.GET("/conversations/:id/messages", handlers.Messages.List)
		api.POST("/conversations/:id/messages",
			middleware.MessageRateLimitMiddleware(limiter), handlers.Messages.Send)
		api.DELETE("/messages/:id", handlers.Messages.Delete)

		api.GET("/courses", handlers.Courses.List)
		api.POST("/courses", handlers.Courses.Create)
		api.POST("/courses/:id/enroll", handlers.Courses.Enroll)
		api.POST("/courses/:id/archive", handlers.Courses.Archive)

		api.POST("/uploads/message", handlers.Uploads.StoreMessageFile)
	}

	s.engine.GET("/ws", handlers.Socket.Connect)
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
