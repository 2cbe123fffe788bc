// Package backend assembles the persistence, cache and event-publishing
// stack the ledger service runs on.
package backend

import (
	"context"
	"errors"
	"time"

	"atelier/internal/amqp"
	"atelier/internal/cache"
	"atelier/internal/ledger"
	"atelier/internal/services"
	"atelier/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is what a Factory builds. The ledger service created from it owns
// Store and Publisher; Close releases the rest.
type Result struct {
	Store     store.Store
	Cache     cache.Cache[[]ledger.EntitySummary]
	Publisher *amqp.Client

	cleanups []CleanupFunc
}

// Options turns the result into LedgerService options. A missing publisher
// is left out so the service never sees a typed nil.
func (r *Result) Options() []services.Option {
	opts := []services.Option{services.WithSummaryCache(r.Cache)}
	if r.Publisher != nil {
		opts = append(opts, services.WithPublisher(r.Publisher))
	}
	return opts
}

// Close runs the cleanups in reverse order of registration.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type         BackendType
	SQLiteDBPath string

	Cache         CacheType
	CacheTTL      time.Duration
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AMQPURL empty disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	}
	return false
}

func (bt BackendType) String() string {
	return string(bt)
}

type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (ct CacheType) IsValid() bool {
	return ct == MemoryCache || ct == RedisCache
}
