// Package main runs the ReleaseLayer HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/releaselayer/backend/config"
	"github.com/releaselayer/backend/internal/ai"
	"github.com/releaselayer/backend/internal/analytics"
	"github.com/releaselayer/backend/internal/auth"
	"github.com/releaselayer/backend/internal/checklists"
	"github.com/releaselayer/backend/internal/integrations"
	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/organizations"
	"github.com/releaselayer/backend/internal/projects"
	"github.com/releaselayer/backend/internal/releases"
	"github.com/releaselayer/backend/internal/sdk"
	"github.com/releaselayer/backend/internal/sdkconfig"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/markdown"
	"github.com/releaselayer/backend/pkg/queue"
	"github.com/releaselayer/backend/pkg/redis"
	"github.com/releaselayer/backend/pkg/response"
	"github.com/releaselayer/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Interfaces stay nil when a backend is not configured so handlers answer 503.
	var assets projects.Assets
	if cfg.AWS.AssetsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PublicBaseURL:        cfg.AWS.AssetsPublicBaseURL,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			assets = s3Client
		}
	}

	var rewriter releases.Rewriter
	if cfg.OpenAI.APIKey != "" {
		rewriter = ai.NewRewriter(ai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, logger.Named("ai"))
	} else {
		logger.Info("ai rewrite disabled")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	usage := rdb.Usage()
	snapshots := rdb.SnapshotCache(cfg.SDK.InitCacheTTL)
	renderer := markdown.NewRenderer()

	orgRepo := organizations.NewRepository(pool)
	projectRepo := projects.NewRepository(pool)
	releaseRepo := releases.NewRepository(pool)
	checklistRepo := checklists.NewRepository(pool)
	integrationRepo := integrations.NewRepository(pool)
	sdkConfigRepo := sdkconfig.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)

	orgHandler := organizations.NewHandler(orgRepo, usage, logger)
	projectHandler := projects.NewHandler(projectRepo, orgRepo, assets, logger).WithKeyCache(snapshots)
	releaseHandler := releases.NewHandler(releases.Deps{
		Store:    releaseRepo,
		Renderer: renderer,
		Rewriter: rewriter,
		Plans:    orgRepo,
		Counter:  usage,
		Notifier: jobQueue,
		Cache:    snapshots,
		Logger:   logger,
	})
	checklistHandler := checklists.NewHandler(checklistRepo, snapshots, logger)
	integrationHandler := integrations.NewHandler(integrations.Deps{
		Store:    integrationRepo,
		Plans:    orgRepo,
		Source:   integrations.NewGitLabSource(logger.Named("gitlab")),
		Importer: releaseRepo,
		Renderer: renderer,
		Logger:   logger,
	})
	sdkConfigHandler := sdkconfig.NewHandler(sdkConfigRepo, orgRepo, snapshots, logger)
	analyticsHandler := analytics.NewHandler(analyticsRepo, logger)
	sdkHandler := sdk.NewHandler(sdk.Deps{
		Snapshots: &sdk.Loader{
			Projects:   projectRepo,
			Releases:   releaseRepo,
			Checklists: checklistRepo,
			Configs:    sdkConfigRepo,
			Plans:      orgRepo,
			Cache:      snapshots,
			Logger:     logger.Named("sdk"),
		},
		Usage:    usage,
		Progress: analyticsRepo,
		Events:   jobQueue,
		Logger:   logger,
	})

	orgAccess := organizations.RequireAccess(orgRepo, organizations.Self, "id", logger)
	projectAccess := organizations.RequireAccess(orgRepo, projectRepo.OrganizationIDOf, "id", logger)
	sdkConfigAccess := organizations.RequireAccess(orgRepo, projectRepo.OrganizationIDOf, "projectId", logger)
	releaseAccess := organizations.RequireAccess(orgRepo, releaseRepo.OrganizationIDOf, "id", logger)
	checklistAccess := organizations.RequireAccess(orgRepo, checklistRepo.OrganizationIDOf, "id", logger)
	integrationAccess := organizations.RequireAccess(orgRepo, integrationRepo.OrganizationIDOf, "id", logger)
	managers := middleware.RequireOrgRole(models.OrgRoleOwner, models.OrgRoleAdmin)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SplitCORS(cfg.Server.CORSAllowedOrigins, "/sdk/"))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public widget endpoints, authenticated by X-SDK-Key.
	public := router.Group("/sdk")
	{
		public.POST("/init", sdkHandler.Init)
		public.POST("/track", sdkHandler.Track)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Organizations
		api.GET("/orgs", orgHandler.List)
		api.POST("/orgs", orgHandler.Create)
		api.GET("/orgs/:id", orgAccess, orgHandler.Get)
		api.GET("/orgs/:id/members", orgAccess, orgHandler.ListMembers)
		api.GET("/orgs/:id/usage", orgAccess, orgHandler.Usage)
		api.GET("/orgs/:id/projects", orgAccess, projectHandler.List)
		api.POST("/orgs/:id/projects", orgAccess, managers, projectHandler.Create)

		// Projects
		api.GET("/projects/:id", projectAccess, projectHandler.Get)
		api.PUT("/projects/:id", projectAccess, projectHandler.Update)
		api.DELETE("/projects/:id", projectAccess, managers, projectHandler.Delete)
		api.PUT("/projects/:id/domain", projectAccess, managers, projectHandler.SetDomain)
		api.POST("/projects/:id/sdk-key/rotate", projectAccess, managers, projectHandler.RotateSdkKey)
		api.POST("/projects/:id/assets/upload-url", projectAccess, projectHandler.AssetUploadURL)
		api.GET("/projects/:id/analytics", projectAccess, analyticsHandler.ProjectSummary)
		api.GET("/projects/:id/releases", projectAccess, releaseHandler.List)
		api.POST("/projects/:id/releases", projectAccess, releaseHandler.Create)
		api.GET("/projects/:id/checklists", projectAccess, checklistHandler.List)
		api.POST("/projects/:id/checklists", projectAccess, checklistHandler.Create)
		api.GET("/projects/:id/integrations", projectAccess, integrationHandler.List)
		api.POST("/projects/:id/integrations", projectAccess, managers, integrationHandler.Create)

		// Releases
		api.GET("/releases/:id", releaseAccess, releaseHandler.Get)
		api.PUT("/releases/:id", releaseAccess, releaseHandler.Update)
		api.PATCH("/releases/:id", releaseAccess, releaseHandler.Update)
		api.DELETE("/releases/:id", releaseAccess, releaseHandler.Delete)
		api.POST("/releases/:id/publish", releaseAccess, releaseHandler.Publish)
		api.POST("/releases/:id/archive", releaseAccess, releaseHandler.Archive)
		api.POST("/releases/:id/rewrite", releaseAccess, releaseHandler.Rewrite)
		api.GET("/releases/:id/stats", releaseAccess, analyticsHandler.ReleaseStats)

		// Checklists
		api.GET("/checklists/:id", checklistAccess, checklistHandler.Get)
		api.PUT("/checklists/:id", checklistAccess, checklistHandler.Update)
		api.DELETE("/checklists/:id", checklistAccess, checklistHandler.Delete)

		// Integrations
		api.GET("/integrations/:id", integrationAccess, integrationHandler.Get)
		api.PUT("/integrations/:id", integrationAccess, managers, integrationHandler.Update)
		api.PATCH("/integrations/:id", integrationAccess, managers, integrationHandler.Update)
		api.DELETE("/integrations/:id", integrationAccess, managers, integrationHandler.Delete)
		api.POST("/integrations/:id/sync", integrationAccess, integrationHandler.Sync)

		// Widget presentation
		api.GET("/sdk-config/:projectId", sdkConfigAccess, sdkConfigHandler.Get)
		api.PUT("/sdk-config/:projectId", sdkConfigAccess, sdkConfigHandler.Update)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
