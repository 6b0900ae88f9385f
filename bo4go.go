// Package bo4go wires business object collections to a configured
// persistence stack: an in-memory or MySQL store, an optional Redis cache in
// front of it, and zap logging throughout.
package bo4go

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/collection"
	"github.com/ammar0144/bo4go/pkg/config"
	"github.com/ammar0144/bo4go/pkg/db"
	"github.com/ammar0144/bo4go/pkg/logger"
	"github.com/ammar0144/bo4go/pkg/persist"
	"github.com/ammar0144/bo4go/pkg/redis"
	"github.com/ammar0144/bo4go/pkg/store"
	"github.com/ammar0144/bo4go/pkg/store/cached"
	"github.com/ammar0144/bo4go/pkg/store/gormstore"
	"github.com/ammar0144/bo4go/pkg/store/memory"
)

// Config represents the application configuration
type Config = config.Config

// LoadConfig reads the configuration file at path and BO4GO_* variables
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Runtime holds the persistence stack shared by collections
type Runtime struct {
	store     store.DataStore
	committer *persist.Committer
	logger    *zap.Logger
	db        *db.Manager
	cache     *redis.Manager
}

// Open builds the stack described by cfg. A nil log is built from cfg.Log.
func Open(cfg *Config, log *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		var err error
		if log, err = logger.New(cfg.Log); err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	r := &Runtime{logger: log}
	switch cfg.Store.Driver {
	case config.DriverMySQL:
		manager, err := db.NewManager(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		r.db = manager
		r.store = gormstore.NewFromManager(manager, log)
	default:
		r.store = memory.New()
	}

	cache, err := redis.NewManager(&cfg.Cache, log)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.cache = cache
	if cache.Enabled() {
		r.store = cached.New(r.store, cache, log)
	}

	r.committer = persist.NewCommitter(r.store, log)
	log.Info("bo4go runtime ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("cache", cache.Enabled()))
	return r, nil
}

// Store returns the data store collections load from
func (r *Runtime) Store() store.DataStore { return r.store }

// Committer returns the committer collections save through
func (r *Runtime) Committer() *persist.Committer { return r.committer }

// Logger returns the runtime logger
func (r *Runtime) Logger() *zap.Logger { return r.logger }

// Ping checks the database and cache connections that are configured
func (r *Runtime) Ping(ctx context.Context) error {
	if r.db != nil {
		if err := r.db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if r.cache != nil {
		if err := r.cache.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Close releases the database and cache connections
func (r *Runtime) Close() error {
	var errList []error
	if r.cache != nil {
		errList = append(errList, r.cache.Close())
	}
	if r.db != nil {
		errList = append(errList, r.db.Close())
	}
	errList = append(errList, logger.Sync(r.logger))
	return errors.Join(errList...)
}

// Options returns collection options bound to the runtime
func Options[T bo.BusinessObject](r *Runtime, factory bo.Factory[T]) collection.Options[T] {
	return collection.Options[T]{
		Factory: factory,
		Store:   r.store,
		Saver:   r.committer,
		Logger:  r.logger,
	}
}

// NewCollection creates a collection of factory's objects on the runtime
func NewCollection[T bo.BusinessObject](r *Runtime, factory bo.Factory[T]) *collection.Collection[T] {
	return collection.New(Options(r, factory))
}
