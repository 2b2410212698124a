package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dealops/internal/archive"
	"dealops/internal/batch"
	"dealops/internal/checkpoint"
	"dealops/internal/config"
	"dealops/internal/logging"
	"dealops/internal/metrics"
	"dealops/internal/search"
	"dealops/internal/store"
)

// runEnv carries everything a subcommand needs. Optional services are nil
// when not configured.
type runEnv struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *store.PostgresStore
	checkpoints checkpoint.Store
	meili       *search.Meili
	archive     archive.Archiver
	metrics     *metrics.Metrics
	throttle    *batch.Throttle

	closers []func()
}

// setup validates configuration before touching any data source.
func setup(ctx context.Context) (*runEnv, error) {
	cfg := config.Load()
	if logLevelFlag != "" {
		cfg.LogLevel = strings.ToLower(logLevelFlag)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	e := &runEnv{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		throttle: batch.NewThrottle(cfg.WriteRate),
	}
	e.closers = append(e.closers, func() { _ = logger.Sync() })

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.StatementTimeout)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	e.closers = append(e.closers, func() { _ = db.Close() })

	if cfg.AutoMigrate {
		applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", zap.Strings("versions", applied))
		}
	}
	e.store = store.NewPostgresStore(db)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Debug("using redis for checkpoints and run locks")
		redisStore, err := checkpoint.NewRedisStore(cfg.RedisURL)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		e.checkpoints = redisStore
		e.closers = append(e.closers, func() { _ = redisStore.Close() })
	} else {
		logger.Debug("no REDIS_URL, checkpoints are kept in memory")
		e.checkpoints = checkpoint.NewMemory()
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		e.meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		e.closers = append(e.closers, e.meili.Close)
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" && !noArchiveFlag {
		archiver, err := archive.NewMinio(ctx, archive.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Warn("report archive unavailable", zap.Error(err))
		} else {
			e.archive = archiver
		}
	}
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *runEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// indexer returns the search index, or nil when Meilisearch is not configured.
func (e *runEnv) indexer() search.Indexer {
	if e.meili == nil {
		return nil
	}
	return e.meili
}

// finish records the run in metrics, archives the report and pushes metrics.
// Archive and push failures are logged only.
func (e *runEnv) finish(ctx context.Context, command string, started time.Time, report any, runErr error) {
	e.metrics.ObserveRun(command, started, runErr)

	// Reporting must happen even when the run itself was interrupted.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if e.archive != nil && report != nil {
		key, err := e.archive.Archive(ctx, command, report)
		if err != nil {
			e.logger.Warn("archive report", zap.Error(err))
		} else {
			e.logger.Info("archived report", zap.String("key", key))
		}
	}
	if err := e.metrics.Push(ctx, e.cfg.PushgatewayURL, command); err != nil {
		e.logger.Warn("push metrics", zap.Error(err))
	}
}

func printLines(cmd *cobra.Command, lines []string) {
	out := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func resultLines(r batch.Result) []string {
	lines := []string{r.String()}
	for _, f := range r.Failures {
		lines = append(lines, fmt.Sprintf("  failed %s: %v", f.ID, f.Err))
	}
	return lines
}
