package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/bjj-academy-api/internal/access"
	"github.com/noah-isme/bjj-academy-api/internal/handler"
	"github.com/noah-isme/bjj-academy-api/internal/middleware"
	"github.com/noah-isme/bjj-academy-api/internal/repository"
	"github.com/noah-isme/bjj-academy-api/internal/service"
	"github.com/noah-isme/bjj-academy-api/pkg/cache"
	"github.com/noah-isme/bjj-academy-api/pkg/config"
	"github.com/noah-isme/bjj-academy-api/pkg/database"
	"github.com/noah-isme/bjj-academy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/bjj-academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/bjj-academy-api/pkg/middleware/requestid"
	"github.com/noah-isme/bjj-academy-api/pkg/ratelimit"
)

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	examRepo := repository.NewExamRepository(db)
	examStudentRepo := repository.NewExamStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	videoRepo := repository.NewVideoProgressRepository(db)
	txRunner := repository.NewTxRunner(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:           cfg.JWT.Secret,
		Expiry:           cfg.JWT.Expiration,
		Issuer:           cfg.JWT.Issuer,
		DefaultAcademyID: cfg.Academy.DefaultAcademyID,
	})
	userSvc := service.NewUserService(userRepo, logr)
	examSvc := service.NewExamService(examRepo, validate, logr)
	examStudentSvc := service.NewExamStudentService(examRepo, examStudentRepo, userRepo, attendanceRepo, videoRepo, validate, logr)
	evaluationSvc := service.NewEvaluationService(examRepo, examStudentRepo, txRunner, metricsSvc, validate, logr)
	promotionSvc := service.NewPromotionService(promotionRepo, userRepo, txRunner, metricsSvc, validate, logr)

	var attendanceSvc *service.AttendanceService
	if redisClient != nil && cfg.Stats.CacheEnabled {
		statsCache := repository.NewCacheRepository(redisClient)
		attendanceSvc = service.NewAttendanceService(attendanceRepo, userRepo, statsCache, cfg.Stats.CacheTTL, metricsSvc, validate, logr)
	} else {
		attendanceSvc = service.NewAttendanceService(attendanceRepo, userRepo, nil, 0, metricsSvc, validate, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	examHandler := handler.NewExamHandler(examSvc)
	examStudentHandler := handler.NewExamStudentHandler(examStudentSvc, evaluationSvc)
	promotionHandler := handler.NewPromotionHandler(promotionSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			limiter = ratelimit.New(ratelimit.NewRedisStore(redisClient, "ratelimit"))
		} else {
			limiter = ratelimit.New(ratelimit.NewMemoryStore(cfg.RateLimit.SweepPeriod))
		}
	}
	authLimit := ratelimit.Limit{MaxRequests: cfg.RateLimit.AuthMax, Window: cfg.RateLimit.AuthWindow}
	apiLimit := ratelimit.Limit{MaxRequests: cfg.RateLimit.APIMax, Window: cfg.RateLimit.APIWindow}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit(limiter, "auth", authLimit))
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.Use(middleware.RateLimit(limiter, "api", apiLimit))

	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/users", userHandler.List)
	protected.GET("/users/:id", userHandler.Get)
	protected.GET("/users/:id/attendance/stats", attendanceHandler.Stats)
	protected.GET("/users/:id/attendance/export", attendanceHandler.Export)

	protected.GET("/exams", examHandler.List)
	protected.POST("/exams", middleware.RequireAction(access.ActionCreateExam), examHandler.Create)
	protected.GET("/exams/:id", examHandler.Get)
	protected.PUT("/exams/:id", middleware.RequireAction(access.ActionUpdateExam), examHandler.Update)
	protected.DELETE("/exams/:id", middleware.RequireAction(access.ActionDeleteExam), examHandler.Delete)

	protected.GET("/exams/:id/students", examStudentHandler.List)
	protected.POST("/exams/:id/students", middleware.RequireAction(access.ActionEnrollExamStudent), examStudentHandler.Enroll)
	protected.DELETE("/exams/:id/students/:userId", middleware.RequireAction(access.ActionRemoveExamStudent), examStudentHandler.Remove)
	protected.POST("/exams/:id/evaluations", middleware.RequireAction(access.ActionEvaluateExam), examStudentHandler.Evaluate)

	protected.GET("/promotions", promotionHandler.List)
	protected.POST("/promotions", middleware.RequireAction(access.ActionCreatePromotion), promotionHandler.Create)
	protected.GET("/promotions/:id", promotionHandler.Get)
	protected.DELETE("/promotions/:id", middleware.RequireAction(access.ActionReversePromotion), promotionHandler.Reverse)

	protected.GET("/attendances", attendanceHandler.List)
	protected.POST("/attendances", middleware.RequireAction(access.ActionCreateAttendance), attendanceHandler.Create)
	protected.POST("/attendances/bulk", middleware.RequireAction(access.ActionCreateAttendance), attendanceHandler.BulkCreate)
	protected.DELETE("/attendances/:id", middleware.RequireAction(access.ActionDeleteAttendance), attendanceHandler.Delete)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
