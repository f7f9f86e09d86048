package lms

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

// Host is the embedded LMS page: it exposes a runtime API instance for each
// configured version, all backed by the same learner attempt.
type Host struct {
	store    Store
	learner  Learner
	courseID string
	versions []scorm.Version
	timeout  time.Duration

	mu      sync.Mutex
	current *Runtime
}

func NewHost(store Store, learner Learner, courseID string, versions []scorm.Version, timeout time.Duration) *Host {
	if len(versions) == 0 {
		versions = slices.Clone(scorm.DetectionOrder)
	}
	return &Host{
		store:    store,
		learner:  learner,
		courseID: courseID,
		versions: versions,
		timeout:  timeout,
	}
}

// Find returns a fresh runtime for v when the host exposes that version.
func (h *Host) Find(v scorm.Version) (scorm.Driver, bool) {
	if !slices.Contains(h.versions, v) {
		return nil, false
	}
	runtime := NewRuntime(h.store, h.learner, h.courseID, v, h.timeout)
	h.mu.Lock()
	h.current = runtime
	h.mu.Unlock()
	return runtime, true
}

// Current returns the runtime handed out last, or nil.
func (h *Host) Current() *Runtime {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Host) Learner() Learner {
	return h.learner
}

func (h *Host) CourseID() string {
	return h.courseID
}

func (h *Host) Versions() []scorm.Version {
	return slices.Clone(h.versions)
}

// LoadAttempt reads the committed attempt of the host's learner.
func (h *Host) LoadAttempt(ctx context.Context) (*Attempt, error) {
	return h.store.LoadAttempt(ctx, h.learner.ID, h.courseID)
}

// ResetAttempt discards the committed attempt so the next session starts over.
func (h *Host) ResetAttempt(ctx context.Context) error {
	return h.store.DeleteAttempt(ctx, h.learner.ID, h.courseID)
}
