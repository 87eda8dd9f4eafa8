package main

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/aidfeed/internal/adapters/cache"
	"github.com/okian/aidfeed/internal/adapters/mq/broadcast"
	"github.com/okian/aidfeed/internal/adapters/source"
	service "github.com/okian/aidfeed/internal/app"
	"github.com/okian/aidfeed/internal/config"
	"github.com/okian/aidfeed/internal/domain/changes"
	"github.com/okian/aidfeed/internal/domain/merge"
	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/internal/domain/scoring"
	"github.com/okian/aidfeed/pkg/logger"
)

const redisPingTimeout = 3 * time.Second

// buildService wires adapters, cache, merge engine, detector and hub from
// configuration. The returned closer releases the cache backend.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, func() error, error) {
	scorer := scoring.New(
		scoring.WithAmountThresholds(cfg.Scoring.HighAmount, cfg.Scoring.MidAmount),
		scoring.WithDayThresholds(cfg.Scoring.HighDays, cfg.Scoring.MidDays),
		scoring.WithUrgentDays(cfg.Scoring.UrgentDays),
	)

	adapters := source.Build(source.Config{
		Government:  source.Endpoint{BaseURL: cfg.Sources.Government.BaseURL, APIKey: cfg.Sources.Government.APIKey},
		State:       source.Endpoint{BaseURL: cfg.Sources.State.BaseURL, APIKey: cfg.Sources.State.APIKey},
		PrivateURLs: cfg.Sources.PrivateURLs,
		FeedURLs:    cfg.Sources.FeedURLs,
	},
		source.WithTimeout(cfg.Sources.Timeout),
		source.WithScorer(scorer),
		source.WithLogger(log.Named("source")),
	)
	for _, a := range adapters {
		log.Info(ctx, "adapter configured",
			logger.String("name", a.Name()),
			logger.String("kind", string(a.Kind())),
			logger.String("mode", a.Mode().String()))
	}

	c, closer, err := buildCache(ctx, cfg.Cache, log.Named("cache"))
	if err != nil {
		return nil, nil, err
	}

	svc := service.New(
		service.WithAdapters(adapters...),
		service.WithCache(c),
		service.WithMergeEngine(merge.New(merge.WithScorer(scorer), merge.WithLogger(log.Named("merge")))),
		service.WithDetector(changes.New(changes.WithAlertDays(cfg.Broadcast.AlertDays))),
		service.WithHub(broadcast.New(
			broadcast.WithBufferSize(cfg.Broadcast.BufferSize),
			broadcast.WithDeliverTimeout(cfg.Broadcast.DeliverTimeout),
			broadcast.WithLogger(log.Named("broadcast")),
		)),
		service.WithBroadcastScope(model.NewKey(cfg.Broadcast.Region, cfg.Broadcast.Category)),
		service.WithRefreshInterval(cfg.RefreshInterval),
		service.WithLogger(log.Named("service")),
	)
	return svc, closer, nil
}

func buildCache(ctx context.Context, cfg config.CacheConfig, log logger.Logger) (cache.Cache, func() error, error) {
	opts := []cache.Option{
		cache.WithTTL(cfg.TTL),
		cache.WithMaxStale(cfg.MaxStale),
		cache.WithMaxEntries(cfg.MaxEntries),
		cache.WithLogger(log),
	}

	switch cfg.Backend {
	case config.BackendRedis:
		r := cache.NewRedis(cache.NewRedisClient(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), append(opts, cache.WithKeyPrefix(cfg.RedisPrefix))...)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			_ = r.Close()
			return nil, nil, fmt.Errorf("redis cache at %s: %w", cfg.RedisAddr, err)
		}
		log.Info(ctx, "using redis cache", logger.String("addr", cfg.RedisAddr))
		return r, r.Close, nil
	default:
		return cache.NewMemory(opts...), func() error { return nil }, nil
	}
}
