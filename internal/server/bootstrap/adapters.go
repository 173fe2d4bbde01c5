// Package bootstrap opens the storage, session and queue backends selected
// by config. The server and the worker share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/server/sessions"
	"github.com/redis/go-redis/v9"
)

// Adapters are the opened backends. Close releases all of them. Sessions is
// nil for worker adapters.
type Adapters struct {
	Repos    repomanager.RepositoryManager
	Sessions sessions.Store
	Blobs    blobstore.Store
	Broker   queue.Broker

	closers []func() error
}

func (a *Adapters) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RetryPolicy builds the queue policy from cfg.
func RetryPolicy(cfg *config.Config) queue.RetryPolicy {
	return queue.RetryPolicy{
		MaxAttempts: cfg.QueueMaxAttempts,
		MinDelay:    cfg.QueueRetryMin,
		MaxDelay:    cfg.QueueRetryMax,
	}
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Open opens every backend the API server needs. When migrate is set,
// Postgres migrations run before Open returns. On error, whatever was
// already opened is closed.
func Open(ctx context.Context, cfg *config.Config, l logging.Logger, migrate bool) (*Adapters, error) {
	return open(ctx, cfg, l, migrate, true)
}

// OpenWorker opens the backends job handlers use. The session store is left
// alone: a Badger directory can only be held by one process, and that is the
// server.
func OpenWorker(ctx context.Context, cfg *config.Config, l logging.Logger) (*Adapters, error) {
	return open(ctx, cfg, l, false, false)
}

func open(ctx context.Context, cfg *config.Config, l logging.Logger, migrate, withSessions bool) (a *Adapters, err error) {
	a = &Adapters{}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if a.Repos, err = openRepos(ctx, cfg, migrate); err != nil {
		return
	}
	a.closers = append(a.closers, a.Repos.Close)

	if withSessions {
		if a.Sessions, err = openSessions(cfg); err != nil {
			return
		}
		a.closers = append(a.closers, a.Sessions.Close)
	}

	if a.Blobs, err = openBlobs(ctx, cfg); err != nil {
		return
	}

	if a.Broker, err = OpenBroker(cfg, l); err != nil {
		return
	}
	a.closers = append(a.closers, a.Broker.Close)

	return a, nil
}

func openRepos(ctx context.Context, cfg *config.Config, migrate bool) (repomanager.RepositoryManager, error) {
	switch cfg.MetadataBackend {
	case config.BackendMemory:
		return repomanager.NewMemoryRepositoryManager(), nil
	case config.BackendPostgres:
		m, err := repomanager.NewPostgresRepositoryManager(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if cfg.UserCacheSize > 0 {
			m.WithUserCache(func(r users.Repository) users.Repository {
				return users.NewCachedRepository(r, cfg.UserCacheSize, cfg.UserCacheTTL)
			})
		}
		if migrate {
			if err := m.RunMigrations(ctx); err != nil {
				_ = m.Close()
				return nil, err
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
}

func openSessions(cfg *config.Config) (sessions.Store, error) {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return sessions.NewMemoryStore(), nil
	case config.BackendBadger:
		s, err := sessions.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("badger: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		return sessions.NewRedisStore(newRedisClient(cfg)), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case config.BackendMemory:
		return blobstore.NewMemoryStore(), nil
	case config.BackendFS:
		s, err := blobstore.NewFSStore(cfg.FolderPath)
		if err != nil {
			return nil, fmt.Errorf("blob folder: %w", err)
		}
		return s, nil
	case config.BackendS3:
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
			User:         cfg.S3RootUser,
			Password:     cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
}

// OpenBroker connects to the configured queue backend.
func OpenBroker(cfg *config.Config, l logging.Logger) (queue.Broker, error) {
	policy := RetryPolicy(cfg)
	switch cfg.QueueBackend {
	case config.BackendMemory:
		return queue.NewMemoryBroker(policy, l), nil
	case config.BackendRedis:
		return queue.NewRedisBroker(newRedisClient(cfg), policy, l), nil
	case config.BackendAMQP:
		b, err := queue.DialAMQP(cfg.AMQPURL, policy, l)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}
