package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/config"
	"transport-requisition/internal/database"
	"transport-requisition/internal/handler"
	"transport-requisition/internal/lock"
	"transport-requisition/internal/logger"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/repository"
	"transport-requisition/internal/service"
	"transport-requisition/internal/websocket"
	"transport-requisition/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Transport Requisition API
// @version         1.0
// @description     Vehicle requisitions with a HOD then Transport Officer approval chain.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database, cfg.Log.Level, zapLogger)
	if err != nil {
		zapLogger.Fatal("Database connection failed", zap.Error(err))
	}
	zapLogger.Info("Connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	locker, closeLocker := newLocker(ctx, cfg.Redis, zapLogger)
	defer closeLocker()

	wsHub := websocket.NewHub(zapLogger.Named("ws"), cfg.Server.AllowedOrigins)
	go wsHub.Run(ctx)

	// Repository -> Service -> Handler
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	repos := repository.NewRepositories(db)
	chain := workflow.DefaultChain
	resolver := service.NewDirectoryResolver(repos.User, zapLogger)
	approvalService := service.NewApprovalService(repos, chain, resolver, wsHub, zapLogger)
	services := handler.Services{
		User:     service.NewUserService(repos.User, tokens),
		Approval: approvalService,
		Requisition: service.NewRequisitionService(repos, approvalService, chain, resolver, locker,
			cfg.Assignment.ConflictWindow, wsHub, zapLogger),
		Vehicle:      service.NewVehicleService(repos, locker),
		Driver:       service.NewDriverService(repos, locker),
		Route:        service.NewRouteService(repos),
		Trip:         service.NewTripService(repos, locker, wsHub, zapLogger.Named("trips")),
		Ticket:       service.NewTicketService(repos, zapLogger.Named("tickets")),
		Subscription: service.NewSubscriptionService(repos),
		Wallet:       service.NewWalletService(repos, zapLogger.Named("wallet")),
		Audit:        service.NewAuditService(repos.Audit),
	}
	handlers := handler.NewHandlers(services, tokens)

	if cfg.Server.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(zapLogger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", websocket.ServeWs(wsHub, tokens))

	handlers.RegisterRoutes(router.Group("/api"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server listening", zap.Int("port", cfg.Server.Port), zap.String("mode", gin.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited")
}

// newLocker uses redis when an address is configured so assignment locks hold
// across replicas; otherwise locks are process-local.
func newLocker(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (lock.Locker, func()) {
	if cfg.Addr == "" {
		log.Info("REDIS_ADDR not set, using in-process assignment locks")
		return lock.NewMemoryLocker(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	log.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return lock.NewRedisLocker(rdb, cfg.LockTTL, log), func() { _ = rdb.Close() }
}
