// Package app wires configuration, storage, messaging, and the scheduling
// application layer into one dependency container shared by the CLI
// commands and the background worker.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/messaging"
	"github.com/tutorloop/tutorloop/internal/preferences"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/commands"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/services"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/workers"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	schedulePersistence "github.com/tutorloop/tutorloop/internal/scheduling/infrastructure/persistence"
	"github.com/tutorloop/tutorloop/internal/shared/infrastructure/database"
	"github.com/tutorloop/tutorloop/pkg/config"
	"github.com/redis/go-redis/v9"
)

const defaultPostgresMaxConns = 10

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBDriver database.Driver
	Postgres *database.Postgres
	SQLite   *database.SQLite

	// Redis
	RedisClient *redis.Client

	// Repositories
	EventRepo         domain.EventRepository
	GuardRepo         domain.GuardRepository
	ArtifactRepo      domain.ArtifactRepository
	RescheduleLogRepo domain.RescheduleLogRepository
	PreferenceRepo    preferences.Repository

	// Messaging
	Poster messaging.ArtifactPoster

	// Services
	Preferences  *preferences.Provider
	Pipeline     *services.AlternativePipeline
	Orchestrator *services.ConflictOrchestrator

	// Command handlers
	CreateSessionHandler *commands.CreateSessionHandler
	UpdateSessionHandler *commands.UpdateSessionHandler
	RecordRSVPHandler    *commands.RecordRSVPHandler
	DeleteSessionHandler *commands.DeleteSessionHandler

	// Query handlers
	ConflictFinder    *queries.ConflictFinder
	DetectUnconfirmed *queries.DetectUnconfirmedHandler
	MonitorConflicts  *queries.MonitorConflictsHandler

	// Workers
	ScheduleMonitor *workers.ScheduleMonitor
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   logger,
		DBDriver: database.DetectDriver(cfg.DatabaseURL),
	}

	if err := c.openDatabase(ctx); err != nil {
		return nil, err
	}

	// Redis is an optional read-through cache for preferences; in
	// development a missing broker degrades to direct reads.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, preference cache disabled", "error", err)
		} else {
			client := redis.NewClient(opt)
			if err := client.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					c.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, preference cache disabled", "error", err)
			} else {
				c.RedisClient = client
				logger.Info("connected to Redis")
			}
		}
	}

	prefsRepo := c.PreferenceRepo
	if c.RedisClient != nil {
		prefsRepo = preferences.NewCachedRepository(prefsRepo, c.RedisClient, cfg.PrefsCacheTTL, logger)
	}
	c.Preferences = preferences.NewProvider(prefsRepo, logger)

	if cfg.RabbitMQURL != "" {
		poster, err := messaging.NewRabbitMQPoster(cfg.RabbitMQURL, cfg.ArtifactExchange, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, using noop poster", "error", err)
			c.Poster = messaging.NewNoopPoster(logger)
		} else {
			c.Poster = poster
		}
	} else {
		c.Poster = messaging.NewNoopPoster(logger)
	}

	// Alternative generation: external generator when configured,
	// rule-based fallback always.
	var source services.AlternativeSource
	if cfg.GeneratorURL != "" {
		genCfg := services.DefaultLLMGeneratorConfig(cfg.GeneratorURL, cfg.GeneratorAPIKey)
		if cfg.GeneratorTimeout > 0 {
			genCfg.Timeout = cfg.GeneratorTimeout
		}
		source = services.NewLLMGenerator(genCfg, logger)
	}
	fallback := services.NewFallbackGenerator(logger)
	c.Pipeline = services.NewAlternativePipeline(source, fallback, services.DefaultPipelineConfig(), logger)

	c.ConflictFinder = queries.NewConflictFinder(c.EventRepo, logger)
	c.DetectUnconfirmed = queries.NewDetectUnconfirmedHandler(c.EventRepo, logger)
	c.MonitorConflicts = queries.NewMonitorConflictsHandler(c.EventRepo, logger)

	c.Orchestrator = services.NewConflictOrchestrator(
		c.ConflictFinder,
		c.EventRepo,
		c.GuardRepo,
		c.ArtifactRepo,
		c.RescheduleLogRepo,
		c.Pipeline,
		c.Preferences,
		c.Poster,
		logger,
	)

	c.CreateSessionHandler = commands.NewCreateSessionHandler(c.EventRepo, c.ConflictFinder, c.Orchestrator, logger)
	c.UpdateSessionHandler = commands.NewUpdateSessionHandler(c.EventRepo, c.ConflictFinder, c.Orchestrator, logger)
	c.RecordRSVPHandler = commands.NewRecordRSVPHandler(c.EventRepo, logger)
	c.DeleteSessionHandler = commands.NewDeleteSessionHandler(c.EventRepo, logger)

	monitorCfg := workers.DefaultScheduleMonitorConfig()
	if cfg.NudgeInterval > 0 {
		monitorCfg.NudgeInterval = cfg.NudgeInterval
	}
	if cfg.SweepInterval > 0 {
		monitorCfg.SweepInterval = cfg.SweepInterval
	}
	if cfg.SweepLookaheadDays > 0 {
		monitorCfg.LookaheadDays = cfg.SweepLookaheadDays
	}
	c.ScheduleMonitor = workers.NewScheduleMonitor(
		c.EventRepo,
		c.GuardRepo,
		c.ArtifactRepo,
		c.DetectUnconfirmed,
		c.MonitorConflicts,
		c.Preferences,
		c.Poster,
		monitorCfg,
		logger,
	)

	return c, nil
}

// openDatabase connects to the configured store, runs migrations, and
// builds the matching repository set. PostgreSQL is the production path;
// SQLite covers zero-config local mode.
func (c *Container) openDatabase(ctx context.Context) error {
	switch c.DBDriver {
	case database.DriverPostgres:
		pg, err := database.OpenPostgres(ctx, c.Config.DatabaseURL, defaultPostgresMaxConns)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		c.Postgres = pg
		c.EventRepo = schedulePersistence.NewPostgresEventRepository(pg.Pool, c.Logger)
		c.GuardRepo = schedulePersistence.NewPostgresGuardRepository(pg.Pool, c.Logger)
		c.ArtifactRepo = schedulePersistence.NewPostgresArtifactRepository(pg.Pool, c.Logger)
		c.RescheduleLogRepo = schedulePersistence.NewPostgresRescheduleLogRepository(pg.Pool, c.Logger)
		c.PreferenceRepo = preferences.NewPostgresRepository(pg.Pool)
		c.Logger.Info("connected to database", "driver", c.DBDriver)
		return nil

	case database.DriverSQLite:
		lite, err := database.OpenSQLite(ctx, database.SQLitePath(c.Config.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to open local database: %w", err)
		}
		if err := lite.Migrate(ctx); err != nil {
			_ = lite.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		c.SQLite = lite
		c.EventRepo = schedulePersistence.NewSQLiteEventRepository(lite.DB, c.Logger)
		c.GuardRepo = schedulePersistence.NewSQLiteGuardRepository(lite.DB, c.Logger)
		c.ArtifactRepo = schedulePersistence.NewSQLiteArtifactRepository(lite.DB, c.Logger)
		c.RescheduleLogRepo = schedulePersistence.NewSQLiteRescheduleLogRepository(lite.DB, c.Logger)
		c.PreferenceRepo = preferences.NewSQLiteRepository(lite.DB)
		c.Logger.Info("connected to database", "driver", c.DBDriver)
		return nil

	default:
		return fmt.Errorf("unsupported database driver: %s", c.DBDriver)
	}
}

// Ping verifies the backing store is reachable.
func (c *Container) Ping(ctx context.Context) error {
	switch {
	case c.Postgres != nil:
		return c.Postgres.Pool.Ping(ctx)
	case c.SQLite != nil:
		return c.SQLite.DB.PingContext(ctx)
	default:
		return fmt.Errorf("no database configured")
	}
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.ScheduleMonitor != nil && c.ScheduleMonitor.IsRunning() {
		c.ScheduleMonitor.Stop()
	}

	if c.Poster != nil {
		if err := c.Poster.Close(); err != nil {
			c.Logger.Warn("failed to close artifact poster", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("failed to close Redis client", "error", err)
		}
	}

	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			c.Logger.Warn("failed to close local database", "error", err)
		}
	}
}
