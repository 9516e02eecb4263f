package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-timetable-api/api/swagger"
	"github.com/noah-isme/campus-timetable-api/internal/handler"
	"github.com/noah-isme/campus-timetable-api/internal/middleware"
	"github.com/noah-isme/campus-timetable-api/internal/repository"
	"github.com/noah-isme/campus-timetable-api/internal/service"
	"github.com/noah-isme/campus-timetable-api/pkg/cache"
	"github.com/noah-isme/campus-timetable-api/pkg/config"
	"github.com/noah-isme/campus-timetable-api/pkg/database"
	"github.com/noah-isme/campus-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-timetable-api/pkg/middleware/requestid"
)

// @title Campus Timetable API
// @version 1.0.0
// @description Timetable generation, validation and publishing for college course units
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

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		migrations, err := database.Migrations()
		if err != nil {
			logr.Sugar().Fatalw("load migrations failed", "error", err)
		}
		applied, err := database.Migrate(context.Background(), db, migrations, logr)
		if err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
		logr.Sugar().Infow("migrations applied", "versions", applied)
	}

	var redisClient *redis.Client
	if cfg.GridCache.Enabled {
		redisClient, err = cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, grid cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	readiness := []handler.ReadinessCheck{{Name: "database", Ping: db.PingContext}}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient)
		cacheRepo = redisRepo
		readiness = append(readiness, handler.ReadinessCheck{Name: "redis", Ping: redisRepo.Ping})
	}
	gridCache := service.NewGridCache(cacheRepo, metricsSvc, cfg.GridCache.TTL, logr)

	runRepo := repository.NewTimetableRunRepository(db)
	entryRepo := repository.NewTimetableEntryRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	academicRepo := repository.NewAcademicRepository(db)

	validate := validator.New()
	resolver := service.NewEligibilityResolver(academicRepo)
	checks := service.NewTimetableValidator(referenceRepo, academicRepo)
	timetableSvc := service.NewTimetableService(
		runRepo,
		entryRepo,
		referenceRepo,
		academicRepo,
		checks,
		resolver,
		service.NewSlotAssigner(),
		db,
		gridCache,
		metricsSvc,
		validate,
		logr,
		service.TimetableConfig{GenerationTimeout: cfg.Scheduler.GenerationTimeout},
	)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	opsHandler := handler.NewOpsHandler(metricsSvc, readiness...)
	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)

	if cfg.Metrics.Enabled {
		r.GET("/metrics", opsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Scheduler.Enabled {
		api := r.Group(cfg.APIPrefix)
		handler.RegisterTimetableRoutes(api, handler.NewTimetableHandler(timetableSvc), middleware.JWT(tokens))
	} else {
		logr.Info("scheduler disabled, timetable routes not mounted")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
