// Command progressiond serves the community progression API.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/aimd54/forum-progression/internal/app"
	"github.com/aimd54/forum-progression/internal/auth"
	"github.com/aimd54/forum-progression/internal/cache"
	"github.com/aimd54/forum-progression/internal/config"
	"github.com/aimd54/forum-progression/internal/migrations"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/internal/server"
	"github.com/aimd54/forum-progression/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "progressiond",
		Usage: "XP, streak and donation rank service for the community forum",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"PROGRESSION_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the configuration",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and background jobs",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: migrateUp,
					},
					{
						Name:  "down",
						Usage: "Roll back migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
						},
						Action: migrateDown,
					},
				},
			},
			{
				Name:      "token",
				Usage:     "Issue an API token for a user",
				ArgsUsage: "<user-id>",
				Action:    issueToken,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, *logger.Logger, error) {
	if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	return cfg, log, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
	}

	var redisClient redis.UniversalClient
	if cfg.Database.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, &cfg.Database.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		redisClient = client
	}

	a, err := app.New(ctx, cfg, db, redisClient, log)
	if err != nil {
		return err
	}

	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.Scheduler.Stop()

	log.Info().
		Str("environment", cfg.Server.Environment).
		Bool("redis", redisClient != nil).
		Msg("Progression service starting")

	return server.Run(ctx, cfg.Server.Port, a.Router, log)
}

func newRunner(c *cli.Context) (*migrations.Runner, *logger.Logger, error) {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	r, err := migrations.NewRunner(cfg.Database.Postgres.URL(), log)
	if err != nil {
		return nil, nil, err
	}
	return r, log, nil
}

func migrateUp(c *cli.Context) error {
	r, log, err := newRunner(c)
	if err != nil {
		return err
	}
	defer closeRunner(r, log)
	return r.Up()
}

func migrateDown(c *cli.Context) error {
	r, log, err := newRunner(c)
	if err != nil {
		return err
	}
	defer closeRunner(r, log)
	return r.Down(c.Int("steps"))
}

func closeRunner(r *migrations.Runner, log *logger.Logger) {
	if err := r.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close migration runner")
	}
}

func issueToken(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: progressiond token <user-id>", 2)
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil || id == 0 {
		return cli.Exit("user id must be a positive integer", 2)
	}

	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	user, err := repository.NewUserRepository(db).GetByID(uint(id))
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", id, err)
	}

	tokens := auth.NewManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Second)
	token, err := tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
