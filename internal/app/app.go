// Package app wires repositories, services and HTTP handlers together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/aimd54/forum-progression/internal/api/admin"
	"github.com/aimd54/forum-progression/internal/api/dashboard"
	"github.com/aimd54/forum-progression/internal/api/xp"
	"github.com/aimd54/forum-progression/internal/auth"
	"github.com/aimd54/forum-progression/internal/cache"
	"github.com/aimd54/forum-progression/internal/config"
	"github.com/aimd54/forum-progression/internal/ratelimit"
	"github.com/aimd54/forum-progression/internal/relay"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/internal/server"
	"github.com/aimd54/forum-progression/internal/service/achievements"
	"github.com/aimd54/forum-progression/internal/service/leaderboard"
	"github.com/aimd54/forum-progression/internal/service/leveling"
	"github.com/aimd54/forum-progression/internal/service/ranks"
	"github.com/aimd54/forum-progression/internal/service/scheduler"
	"github.com/aimd54/forum-progression/internal/service/streak"
	"github.com/aimd54/forum-progression/internal/service/users"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// App holds the assembled services.
type App struct {
	Config       *config.Config
	DB           *repository.DB
	Tokens       *auth.Manager
	Leveling     *leveling.Service
	Streaks      *streak.Service
	Ranks        *ranks.Service
	Achievements *achievements.Service
	Leaderboard  *leaderboard.Service
	Users        *users.Service
	Scheduler    *scheduler.Service
	Router       *gin.Engine
}

// BuildCurve loads the level curve from the configured file, falling back to
// the inline thresholds.
func BuildCurve(cfg *config.LevelingConfig) (leveling.Curve, error) {
	if cfg.CurveFile != "" {
		return leveling.LoadCurveFile(cfg.CurveFile)
	}
	return leveling.NewThresholdCurve(cfg.Thresholds)
}

// New builds every service on top of db. redisClient may be nil, in which case
// leaderboards are not cached and rate limiting is per process.
func New(ctx context.Context, cfg *config.Config, db *repository.DB, redisClient redis.UniversalClient, log *logger.Logger) (*App, error) {
	curve, err := BuildCurve(&cfg.Leveling)
	if err != nil {
		return nil, fmt.Errorf("failed to build level curve: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	xpRepo := repository.NewXPRepository(db)
	streakRepo := repository.NewStreakRepository(db)
	rankRepo := repository.NewRankRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)

	achievementService := achievements.NewService(achievementRepo, log.Child("component", "achievements"))
	levelingService := leveling.NewService(db, userRepo, xpRepo, curve, achievementService, log.Child("component", "leveling"))
	achievementService.SetXPAwarder(levelingService)

	if _, err := achievementService.Seed(ctx, achievements.DefaultDefinitions); err != nil {
		return nil, fmt.Errorf("failed to seed achievements: %w", err)
	}

	streakService, err := streak.NewService(db, userRepo, streakRepo, levelingService, achievementService, &cfg.Streak, log.Child("component", "streak"))
	if err != nil {
		return nil, err
	}

	rankService, err := ranks.NewService(db, userRepo, rankRepo, cfg.Ranks, log.Child("component", "ranks"))
	if err != nil {
		return nil, fmt.Errorf("failed to build rank catalog: %w", err)
	}
	if err := rankService.SyncCatalog(ctx); err != nil {
		return nil, fmt.Errorf("failed to sync rank catalog: %w", err)
	}

	var (
		jsonCache *cache.JSONCache
		limiter   ratelimit.Store = ratelimit.NewLocalStore()
	)
	if redisClient != nil {
		jsonCache = cache.NewJSONCache(redisClient, "leaderboard")
		limiter = ratelimit.NewRedisStore(redisClient, "ratelimit")
	}

	leaderboardService := leaderboard.NewService(userRepo, xpRepo, streakRepo, achievementRepo, jsonCache, log.Child("component", "leaderboard"))
	userService := users.NewService(db, userRepo, log.Child("component", "users"))
	relayClient := relay.NewClient(&cfg.Relay, log.Child("component", "relay"))

	var invalidator scheduler.CacheInvalidator
	if jsonCache != nil {
		invalidator = jsonCache
	}
	schedulerService := scheduler.NewService(&cfg.Scheduler, rankService, relayClient, invalidator, log.Child("component", "scheduler"))

	tokens := auth.NewManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Second)

	router := server.NewRouter(server.Deps{
		Config:    cfg,
		Health:    db,
		Tokens:    tokens,
		Roles:     userService,
		Limiter:   limiter,
		XP:        xp.NewHandler(streakService, levelingService, log.Child("handler", "xp")),
		Admin:     admin.NewHandler(rankService, userService, levelingService, relayClient, log.Child("handler", "admin")),
		Dashboard: dashboard.NewHandler(achievementService, leaderboardService, rankService, log.Child("handler", "dashboard")),
		Log:       log.Child("component", "http"),
	})

	return &App{
		Config:       cfg,
		DB:           db,
		Tokens:       tokens,
		Leveling:     levelingService,
		Streaks:      streakService,
		Ranks:        rankService,
		Achievements: achievementService,
		Leaderboard:  leaderboardService,
		Users:        userService,
		Scheduler:    schedulerService,
		Router:       router,
	}, nil
}
