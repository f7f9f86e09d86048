package lms

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
)

// CachedStore keeps recently used attempts in memory in front of a remote
// store. Writes go through to the backend before the cache is updated, so the
// cache never holds data the backend rejected.
type CachedStore struct {
	backend Store
	cache   *expirable.LRU[attemptKey, *Attempt]
}

func NewCachedStore(backend Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		backend: backend,
		cache:   expirable.NewLRU[attemptKey, *Attempt](size, nil, ttl),
	}
}

func (cs *CachedStore) LoadAttempt(ctx context.Context, learnerID, courseID string) (*Attempt, error) {
	key := attemptKey{learnerID, courseID}
	if attempt, ok := cs.cache.Get(key); ok {
		logger.DebugF("attempt cache hit: %s/%s", learnerID, courseID)
		return attempt.Clone(), nil
	}
	attempt, err := cs.backend.LoadAttempt(ctx, learnerID, courseID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			cs.cache.Remove(key)
		}
		return nil, err
	}
	cs.cache.Add(key, attempt.Clone())
	return attempt, nil
}

func (cs *CachedStore) SaveAttempt(ctx context.Context, attempt *Attempt) error {
	if err := cs.backend.SaveAttempt(ctx, attempt); err != nil {
		return err
	}
	cs.cache.Add(attemptKey{attempt.LearnerID, attempt.CourseID}, attempt.Clone())
	return nil
}

func (cs *CachedStore) DeleteAttempt(ctx context.Context, learnerID, courseID string) error {
	cs.cache.Remove(attemptKey{learnerID, courseID})
	return cs.backend.DeleteAttempt(ctx, learnerID, courseID)
}

func (cs *CachedStore) Close(ctx context.Context) error {
	cs.cache.Purge()
	return cs.backend.Close(ctx)
}

func (cs *CachedStore) Len() int {
	return cs.cache.Len()
}
