// Package session drives one learning session against a scorm.API: the
// connect/disconnect state machine, the suspend data persisted in
// cmi.suspend_data, and the guarded facade content uses in between.
//
// Failures never surface as errors. Every operation returns a Result that says
// whether it was applied, and rejected operations leave local state unchanged.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type Result int

const (
	ResultApplied Result = iota
	ResultRejectedByRemote
	ResultNotConnected
	ResultInvalidArgument
)

func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultRejectedByRemote:
		return "rejected_by_remote"
	case ResultNotConnected:
		return "not_connected"
	case ResultInvalidArgument:
		return "invalid_argument"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Applied reports whether the operation changed anything.
func (r Result) Applied() bool {
	return r == ResultApplied
}

const defaultCompletionStatus = string(scorm.StatusIncomplete)

// Snapshot is the session state consumers read.
type Snapshot struct {
	APIConnected     bool          `json:"apiConnected"`
	LearnerName      string        `json:"learnerName"`
	CompletionStatus string        `json:"completionStatus"`
	SuspendData      SuspendData   `json:"suspendData"`
	ScormVersion     scorm.Version `json:"scormVersion"`
}

// Session is safe for concurrent use; calls into the API are serialized.
type Session struct {
	mu      sync.Mutex
	api     scorm.API
	metrics *metrics.Collector
	log     *slog.Logger
	subs    *broadcaster

	state            State
	debug            bool
	version          scorm.Version
	learnerName      string
	completionStatus string
	suspend          *suspendDataStore
}

type Option func(*Session)

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

func New(api scorm.API, opts ...Option) *Session {
	s := &Session{
		api:              api,
		log:              logger.Component("session"),
		subs:             newBroadcaster(),
		completionStatus: defaultCompletionStatus,
	}
	s.suspend = newSuspendDataStore(api)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		APIConnected:     s.state == StateConnected,
		LearnerName:      s.learnerName,
		CompletionStatus: s.completionStatus,
		SuspendData:      s.suspend.get(),
		ScormVersion:     s.version,
	}
}

func (s *Session) publish() {
	s.subs.publish(s.snapshot())
}

// reset clears the session back to its disconnected defaults.
func (s *Session) reset() {
	s.state = StateDisconnected
	s.version = ""
	s.learnerName = ""
	s.completionStatus = defaultCompletionStatus
	s.suspend.reset()
	s.metrics.SetConnected(false)
}

// diagnostic reports a failure that is not returned to the caller. It is only
// visible at the default log level when the session runs with debug enabled.
func (s *Session) diagnostic(kind, format string, args ...any) {
	s.metrics.Diagnostic(kind)
	msg := fmt.Sprintf(format, args...)
	if s.debug {
		s.log.Warn(msg, "kind", kind, "version", s.version.String())
		return
	}
	s.log.Debug(msg, "kind", kind, "version", s.version.String())
}

// save commits after a successful write. A failed commit leaves the write
// applied and is only reported.
func (s *Session) save(what string) {
	if !s.api.Save() {
		s.diagnostic("remote_rejected", "could not save %s", what)
	}
}

func (s *Session) done(operation string, r Result) Result {
	s.metrics.SessionOperation(operation, r.String())
	return r
}
