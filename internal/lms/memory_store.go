package lms

import (
	"context"
	"sync"
)

type attemptKey struct {
	learnerID string
	courseID  string
}

// MemoryStore keeps attempts for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey]*Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[attemptKey]*Attempt)}
}

func (ms *MemoryStore) LoadAttempt(_ context.Context, learnerID, courseID string) (*Attempt, error) {
	if learnerID == "" {
		return nil, ErrEmptyLearnerID
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	attempt, ok := ms.attempts[attemptKey{learnerID, courseID}]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (ms *MemoryStore) SaveAttempt(_ context.Context, attempt *Attempt) error {
	if err := attempt.validate(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.attempts[attemptKey{attempt.LearnerID, attempt.CourseID}] = attempt.Clone()
	return nil
}

func (ms *MemoryStore) DeleteAttempt(_ context.Context, learnerID, courseID string) error {
	if learnerID == "" {
		return ErrEmptyLearnerID
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.attempts, attemptKey{learnerID, courseID})
	return nil
}

func (ms *MemoryStore) Close(context.Context) error {
	return nil
}
