package backend

import (
	"context"
	"fmt"
	"time"

	"atelier/internal/amqp"
	"atelier/internal/cache"
	"atelier/internal/ledger"
	"atelier/internal/log"
	"atelier/internal/store"
	"atelier/internal/store/memory"
	"atelier/internal/store/sqlite"
)

const summaryKeyPrefix = "atelier:"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend builds the store, the summary cache and, when configured,
// the AMQP publisher. Redis and AMQP are optional: when they cannot be
// reached the backend falls back to the in-process cache and no events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.createStore(config)
	if err != nil {
		return nil, err
	}
	res := &Result{Store: st}

	res.Cache = f.createCache(ctx, config, res)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events",
				log.FieldError, err, log.FieldComponent, log.ComponentAMQP)
		} else {
			res.Publisher = client
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized backend",
		"store", config.Type, "cache", config.Cache, "amqp_enabled", res.Publisher != nil)
	return res, nil
}

func (f *DefaultFactory) createStore(config Config) (store.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	default:
		f.logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
}

func (f *DefaultFactory) createCache(ctx context.Context, config Config, res *Result) cache.Cache[[]ledger.EntitySummary] {
	if config.Cache == RedisCache {
		client, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err == nil {
			res.cleanups = append(res.cleanups, client.Close)
			f.logger.Info("Using Redis summary cache", "addr", config.RedisAddr)
			return cache.NewRedisCache[[]ledger.EntitySummary](client, summaryKeyPrefix, config.CacheTTL)
		}
		f.logger.Warn("Redis unavailable, using in-process summary cache",
			log.FieldError, err, log.FieldComponent, log.ComponentCache)
	}

	lru := cache.NewLRUCache[[]ledger.EntitySummary](max(config.CacheSize, 1), config.CacheTTL)
	mgr := cache.NewManager()
	mgr.Register(lru)
	mgr.StartCleanup(cleanupInterval(config.CacheTTL))
	res.cleanups = append(res.cleanups, func() error {
		mgr.Stop()
		return nil
	})
	return lru
}

// cleanupInterval sweeps twice per TTL, at least every 10 minutes.
func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 20*time.Minute {
		return 10 * time.Minute
	}
	return max(ttl/2, time.Second)
}
