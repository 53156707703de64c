package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sales-credit-api/api/swagger"
	"github.com/noah-isme/sales-credit-api/internal/handler"
	"github.com/noah-isme/sales-credit-api/internal/middleware"
	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/internal/repository"
	"github.com/noah-isme/sales-credit-api/internal/service"
	"github.com/noah-isme/sales-credit-api/pkg/cache"
	"github.com/noah-isme/sales-credit-api/pkg/config"
	"github.com/noah-isme/sales-credit-api/pkg/database"
	"github.com/noah-isme/sales-credit-api/pkg/events"
	"github.com/noah-isme/sales-credit-api/pkg/jobs"
	"github.com/noah-isme/sales-credit-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sales-credit-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sales-credit-api/pkg/middleware/requestid"
)

// @title Sales Credit Unblock API
// @version 1.0.0
// @description Two-level approval of sales-credit unblock requests reviewed in credit meetings.
// @BasePath /api/v1/credit
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, cfg.Database.MigrationsPath, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	meetingRepo := repository.NewMeetingRepository(db)
	requestRepo := repository.NewUnblockRequestRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	historyRepo := repository.NewApprovalHistoryRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	var eventSvc *service.DecisionEventService
	if cfg.Events.Enabled {
		publisher, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.DecisionTopic)
		if err != nil {
			logr.Fatal("failed to init kafka publisher", zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
		eventSvc = service.NewDecisionEventService(publisher, jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			MaxRetries: cfg.Events.Retries,
		}, metrics, logr)
		eventSvc.Start(rootCtx)
		defer eventSvc.Stop()
	}

	bindings := service.NewApproverBindings(cfg.Approvals)
	if _, ok := bindings.Default(models.ApprovalLevelFirst); !ok {
		logr.Warn("no first level approver configured; requests must carry approverId")
	}
	if _, ok := bindings.Default(models.ApprovalLevelSecond); !ok {
		logr.Warn("no second level approver configured; requests must carry approverId")
	}

	decisionSvc := service.NewDecisionService(
		service.NewTxBeginner(db),
		meetingRepo,
		requestRepo,
		approvalRepo,
		historyRepo,
		employeeRepo,
		cacheSvc,
		metrics,
		eventSvc,
		logr,
		service.DecisionServiceConfig{LockTimeout: cfg.Database.LockTimeout, Bindings: bindings},
	)
	meetingSvc := service.NewMeetingService(meetingRepo, requestRepo, approvalRepo, decisionSvc.Machine(), cacheSvc, logr, service.MeetingServiceConfig{})
	unblockSvc := service.NewUnblockRequestService(meetingRepo, requestRepo, decisionSvc, bindings, cacheSvc, logr)
	historySvc := service.NewApprovalHistoryService(meetingRepo, historyRepo, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.Pinger{"database": meetingRepo}
	if redisClient != nil {
		checks["cache"] = cacheRepo
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)
	unblockHandler := handler.NewUnblockRequestHandler(unblockSvc)
	approvalHandler := handler.NewApprovalHandler(decisionSvc, historySvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc), middleware.WithResponseMeta())
	{
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/:id/stats", meetingHandler.Stats)
		api.GET("/meetings/:id/unblock-requests", unblockHandler.List)
		api.GET("/meetings/:id/approval-history", approvalHandler.History)
		api.GET("/meetings/:id/approval-history/export", approvalHandler.Export)

		deciders := middleware.RequireRoles(models.RoleSalesManager, models.RoleCEO, models.RoleAdmin)
		api.POST("/meetings/:id/batch-approval", deciders, approvalHandler.Batch)
		api.POST("/unblock-requests/:id/decision", deciders, unblockHandler.Decide)

		api.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("api_prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	stop()
}
