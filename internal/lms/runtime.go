package lms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

type RuntimeState int

const (
	StateNotInitialized RuntimeState = iota
	StateRunning
	StateTerminated
)

func (s RuntimeState) String() string {
	switch s {
	case StateNotInitialized:
		return "not initialized"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Learner struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Runtime is one runtime API instance bound to a learner's attempt. It is
// initialized and terminated at most once.
type Runtime struct {
	mu         sync.Mutex
	store      Store
	learner    Learner
	courseID   string
	version    scorm.Version
	timeout    time.Duration
	state      RuntimeState
	attempt    *Attempt
	lastError  int
	lastDetail string
	log        *slog.Logger
}

func NewRuntime(store Store, learner Learner, courseID string, version scorm.Version, timeout time.Duration) *Runtime {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runtime{
		store:    store,
		learner:  learner,
		courseID: courseID,
		version:  version,
		timeout:  timeout,
		log:      logger.Component("lms").With("version", version.String(), "learner", learner.ID),
	}
}

func (r *Runtime) Version() scorm.Version {
	return r.version
}

func (r *Runtime) State() RuntimeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempt returns a copy of the attempt as it currently stands in memory,
// including values not committed yet.
func (r *Runtime) Attempt() *Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt.Clone()
}

func (r *Runtime) fail(c condition, op operation, detail string) {
	r.lastError = errorCode(r.version, c, op)
	r.lastDetail = detail
}

func (r *Runtime) succeed() {
	r.lastError = 0
	r.lastDetail = ""
}

// checkRunning reports the condition raised by calling op outside a running
// session, or condNone.
func (r *Runtime) checkRunning() condition {
	switch r.state {
	case StateNotInitialized:
		return condBeforeInit
	case StateTerminated:
		return condAfterTermination
	default:
		return condNone
	}
}

func (r *Runtime) Initialize() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRunning:
		r.fail(condAlreadyInitialized, opInitialize, "Initialize called twice")
		return false
	case StateTerminated:
		r.fail(condInstanceTerminated, opInitialize, "Initialize called after Terminate")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	attempt, err := r.store.LoadAttempt(ctx, r.learner.ID, r.courseID)
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		attempt = NewAttempt(r.learner.ID, r.courseID, r.version)
	case err != nil:
		r.fail(condInitFailure, opInitialize, fmt.Sprintf("load attempt: %v", err))
		return false
	}
	attempt.migrate(r.version)
	r.prepare(attempt)
	r.attempt = attempt
	r.state = StateRunning
	r.succeed()
	r.log.Debug("runtime initialized", "attempt", attempt.AttemptID, "sessions", attempt.Sessions, "entry", attempt.Data[scorm.EntryField(r.version)])
	return true
}

// prepare fills the read-only elements for a new learner session and clears the
// per-session ones.
func (r *Runtime) prepare(attempt *Attempt) {
	data := attempt.Data
	exit := scorm.ExitField(r.version)
	entry := "ab-initio"
	if data[exit] == "suspend" {
		entry = "resume"
	}
	delete(data, exit)

	data[scorm.LearnerIDField(r.version)] = r.learner.ID
	data[scorm.LearnerNameField(r.version)] = r.learner.Name
	data[scorm.EntryField(r.version)] = entry
	if r.version == scorm.Version12 {
		data["cmi.core.credit"] = "credit"
		data["cmi.core.lesson_mode"] = "normal"
		delete(data, "cmi.core.session_time")
		if _, ok := data["cmi.core.total_time"]; !ok {
			data["cmi.core.total_time"] = "0000:00:00"
		}
	} else {
		data["cmi.credit"] = "credit"
		data["cmi.mode"] = "normal"
		delete(data, "cmi.session_time")
		if _, ok := data["cmi.success_status"]; !ok {
			data["cmi.success_status"] = "unknown"
		}
		if _, ok := data["cmi.total_time"]; !ok {
			data["cmi.total_time"] = "PT0H0M0S"
		}
	}
	if _, ok := data[scorm.StatusField(r.version)]; !ok {
		data[scorm.StatusField(r.version)] = string(scorm.StatusNotAttempted)
	}
	if _, ok := data[scorm.SuspendDataField]; !ok {
		data[scorm.SuspendDataField] = ""
	}
	attempt.Sessions++
}

func (r *Runtime) GetValue(element string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.checkRunning(); c != condNone {
		r.fail(c, opGetValue, "GetValue outside a running session")
		return ""
	}
	if c := checkGet(r.version, element); c != condNone {
		r.fail(c, opGetValue, element)
		return ""
	}
	value, ok := r.attempt.Data[element]
	if !ok {
		r.fail(condValueNotInitialized, opGetValue, element)
		return ""
	}
	r.succeed()
	return value
}

func (r *Runtime) SetValue(element, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.checkRunning(); c != condNone {
		r.fail(c, opSetValue, "SetValue outside a running session")
		return false
	}
	if c := checkSet(r.version, element, value); c != condNone {
		r.fail(c, opSetValue, fmt.Sprintf("%s=%q", element, value))
		return false
	}
	r.attempt.Data[element] = value
	r.succeed()
	return true
}

func (r *Runtime) commit(op operation) bool {
	r.attempt.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.SaveAttempt(ctx, r.attempt); err != nil {
		c := condCommitFailure
		if op == opTerminate {
			c = condTerminationFailure
		}
		r.fail(c, op, fmt.Sprintf("save attempt: %v", err))
		r.log.Debug("commit failed", "error", err)
		return false
	}
	r.succeed()
	return true
}

func (r *Runtime) Commit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.checkRunning(); c != condNone {
		r.fail(c, opCommit, "Commit outside a running session")
		return false
	}
	return r.commit(opCommit)
}

// Terminate commits the attempt and ends the session. A failed commit leaves the
// session running so that content can try again.
func (r *Runtime) Terminate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.checkRunning(); c != condNone {
		r.fail(c, opTerminate, "Terminate outside a running session")
		return false
	}
	if !r.commit(opTerminate) {
		return false
	}
	r.state = StateTerminated
	r.log.Debug("runtime terminated", "attempt", r.attempt.AttemptID)
	return true
}

func (r *Runtime) GetLastError() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

func (r *Runtime) GetErrorString(code int) string {
	return errorString(r.version, code)
}

func (r *Runtime) GetDiagnostic(code int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code == r.lastError && r.lastDetail != "" {
		return r.lastDetail
	}
	return errorString(r.version, code)
}
