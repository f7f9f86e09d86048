package lms

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/config"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/utils"
)

// Store persists attempts, one per (learner, course).
type Store interface {
	LoadAttempt(ctx context.Context, learnerID, courseID string) (*Attempt, error)
	SaveAttempt(ctx context.Context, attempt *Attempt) error
	DeleteAttempt(ctx context.Context, learnerID, courseID string) error
	Close(ctx context.Context) error
}

// StoreCloseCallback releases a store on shutdown.
type StoreCloseCallback struct {
	store Store
}

func NewStoreCloseCallback(store Store) *StoreCloseCallback {
	return &StoreCloseCallback{store: store}
}

func (sc *StoreCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing attempt store")
	return sc.store.Close(ctx)
}

// OpenStore builds the store selected by cfg.Driver. Connecting is retried with
// exponential backoff up to cfg.ConnectRetries times.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var store Store
	open := func() error {
		var err error
		switch cfg.Driver {
		case "memory":
			store = NewMemoryStore()
		case "sqlite":
			store, err = OpenSQLiteStore(cfg.SQLitePath)
		case "mongo":
			store, err = ConnectMongoStore(ctx, cfg)
		default:
			return backoff.Permanent(fmt.Errorf("unknown store driver %q", cfg.Driver))
		}
		if err != nil {
			logger.WarnF("Opening %s store failed: %v", cfg.Driver, err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0
	err := backoff.Retry(open, backoff.WithContext(backoff.WithMaxRetries(policy, cfg.ConnectRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("error occured while opening %s store: %w", cfg.Driver, err)
	}
	if cfg.Driver != "memory" && cfg.CacheSize > 0 {
		store = NewCachedStore(store, cfg.CacheSize, utils.ParseDurationOr(cfg.CacheTTL, time.Hour))
	}
	logger.InfoF("Attempt store ready, driver=%s cache=%d", cfg.Driver, cfg.CacheSize)
	return store, nil
}

func operationTimeout(cfg config.StoreConfig) time.Duration {
	return utils.ParseDurationOr(cfg.OperationTimeout, 5*time.Second)
}
