package cli

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"promptathon/internal/app"
	"promptathon/internal/config"
	infraredis "promptathon/internal/infra/redis"
	"promptathon/internal/logger"
)

// engine bundles the wired-up core shared by every subcommand. Construction
// fails when the initial Redis connection cannot be established.
type engine struct {
	cfg         config.Config
	log         zerolog.Logger
	client      goredis.UniversalClient
	keyspace    *infraredis.Keyspace
	writer      *infraredis.Writer
	leaderboard *app.Leaderboard
}

func newEngine(ctx context.Context, eventPath string) (*engine, error) {
	cfg, err := config.Load(eventPath)
	if err != nil {
		return nil, err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	client, err := infraredis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	keyspace := infraredis.NewKeyspace(client, log)
	caches := app.NewCacheManager(keyspace, cfg.Cache.ClearedPairsTTL, cfg.Cache.SubmissionsTTL, cfg.Cache.LevelCapacity)

	return &engine{
		cfg:         cfg,
		log:         log,
		client:      client,
		keyspace:    keyspace,
		writer:      infraredis.NewWriter(client),
		leaderboard: app.NewLeaderboard(keyspace, caches, log),
	}, nil
}

func (e *engine) Close() {
	_ = e.client.Close()
}
