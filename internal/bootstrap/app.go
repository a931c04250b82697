package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"ideascope-backend/internal/aiservice"
	"ideascope-backend/internal/analyses"
	"ideascope-backend/internal/projects"
	"ideascope-backend/internal/shared/auth"
	"ideascope-backend/internal/shared/config"
	"ideascope-backend/internal/shared/server"
	"ideascope-backend/internal/shared/server/middleware"
	"ideascope-backend/internal/shared/storage/cache"
	"ideascope-backend/internal/shared/storage/db"
	"ideascope-backend/internal/shared/storage/object"
	localstore "ideascope-backend/internal/shared/storage/object/local"
	s3store "ideascope-backend/internal/shared/storage/object/s3"
	"ideascope-backend/internal/shared/telemetry"
	"ideascope-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Redis           *cache.RedisClient
	Store           object.ObjectStore
	Projects        projects.Store
	TaskCache       analyses.TaskCache
	UsersService    *users.Service
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
}

// Build connects the backing services and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	taskCache, redisClient, err := buildTaskCache(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.TaskCache = taskCache
	app.Redis = redisClient

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			telemetry.Warn("bootstrap.redis_close_failed", map[string]any{"error": err.Error()})
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err.Error()})
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_url_empty", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"fallback": "memory", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildTaskCache(ctx context.Context, cfg config.Config) (analyses.TaskCache, *cache.RedisClient, error) {
	if cfg.TaskCache.Backend == "memory" {
		return analyses.NewMemoryTaskCache(nil), nil, nil
	}

	client := cache.NewRedis(cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"fallback": "memory", "error": err.Error()})
			return analyses.NewMemoryTaskCache(nil), nil, nil
		}
		return nil, nil, err
	}
	return analyses.NewRedisTaskCache(client), client, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var userRepo users.Repo
	if app.DB != nil {
		app.Projects = &projects.PGStore{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.Projects = projects.NewMemoryStore()
		userRepo = users.NewMemoryRepo()
	}

	aiClient, err := aiservice.NewClient(aiservice.Config{
		BaseURL:       app.Config.AIService.BaseURL,
		Timeout:       app.Config.AIService.Timeout,
		RetryCount:    app.Config.AIService.RetryCount,
		RequestSchema: app.Config.AIService.RequestSchema,
	})
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(app.Config.Auth.JWTSecret, app.Config.Auth.JWTIssuer, app.Config.Env)
	if err != nil {
		return err
	}

	app.UsersService = users.NewService(userRepo)
	app.AnalysesService = &analyses.Service{
		AI:            aiClient,
		Cache:         app.TaskCache,
		Store:         app.Projects,
		Archive:       analyses.NewArchive(app.Store),
		InProgressTTL: app.Config.TaskCache.InProgressTTL,
		CompleteTTL:   app.Config.TaskCache.CompleteTTL,
		CommitTimeout: app.Config.CommitTimeout,
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Verifier:        verifier,
		Users:           app.UsersService,
		AnalysisHandler: app.AnalysisHandler,
		RateLimiter:     middleware.NewRateLimiter(nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          app.Config.Env,
		"database":     app.DB != nil,
		"redis":        app.Redis != nil,
		"object_store": app.Config.ObjectStoreType,
		"ai_schema":    aiClient.RequestSchema(),
	})
	return nil
}
