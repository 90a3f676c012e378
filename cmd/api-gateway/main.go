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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mentorship-api/api/swagger"
	"github.com/noah-isme/mentorship-api/internal/handler"
	"github.com/noah-isme/mentorship-api/internal/middleware"
	"github.com/noah-isme/mentorship-api/internal/repository"
	"github.com/noah-isme/mentorship-api/internal/service"
	"github.com/noah-isme/mentorship-api/pkg/cache"
	"github.com/noah-isme/mentorship-api/pkg/config"
	"github.com/noah-isme/mentorship-api/pkg/database"
	"github.com/noah-isme/mentorship-api/pkg/jobs"
	"github.com/noah-isme/mentorship-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mentorship-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mentorship-api/pkg/middleware/requestid"
)

// @title Mentorship API
// @version 1.0.0
// @description Mentor and mentee registry, assignment engine and mentoring sessions
// @BasePath /api/v1
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, capacity cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	capacityCache := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metrics,
		cfg.Assignments.CapacityCacheTTL,
		logr,
		cfg.Assignments.CapacityCache && redisClient != nil,
	)

	menteeRepo := repository.NewMenteeRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	runRepo := repository.NewAssignmentRunRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, menteeRepo, mentorRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		SignupMaxMentees:  cfg.Assignments.SignupMaxMentees,
	})
	menteeSvc := service.NewMenteeService(menteeRepo, capacityCache, validate, logr)
	mentorSvc := service.NewMentorService(mentorRepo, menteeRepo, capacityCache, validate, logr, service.MentorServiceConfig{
		DefaultMaxMentees: cfg.Assignments.DefaultMaxMentees,
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, menteeRepo, activityRepo, capacityCache, metrics, validate, logr, service.AssignmentServiceConfig{
		CapacityTTL: cfg.Assignments.CapacityCacheTTL,
	})
	sessionSvc := service.NewSessionService(activityRepo, menteeRepo, validate, logr)
	activitySvc := service.NewActivityService(activityRepo, mentorRepo, validate, logr)

	// The queue and the run service reference each other; the closures resolve runSvc at call time.
	// One worker keeps batch runs from overlapping.
	var runSvc *service.AssignmentRunService
	runQueue := jobs.NewQueue("auto-assign", func(ctx context.Context, job jobs.Job) error {
		return runSvc.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Assignments.RunRetries,
		RetryDelay: 2 * time.Second,
		OnExhausted: func(ctx context.Context, job jobs.Job, cause error) {
			runSvc.Exhausted(ctx, job, cause)
		},
		Logger: logr,
	})
	runSvc = service.NewAssignmentRunService(runRepo, assignmentSvc, runQueue, validate, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runQueue.Start(rootCtx)
	defer runQueue.Stop()
	runSvc.RecoverPending(rootCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	ops := handler.NewOpsHandler(metrics, db)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Mentees:     handler.NewMenteeHandler(menteeSvc),
		Mentors:     handler.NewMentorHandler(mentorSvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc, runSvc),
		Activities:  handler.NewActivityHandler(activitySvc),
		Portal: handler.NewPortalHandler(mentorSvc, menteeSvc, assignmentSvc, sessionSvc, handler.PortalConfig{
			ExportsEnabled: cfg.Reports.Enabled,
		}),
	}, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	case <-rootCtx.Done():
		logr.Info("shutdown requested")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logr.Error("graceful shutdown failed", zap.Error(err))
			_ = srv.Close()
		}
	}
}
