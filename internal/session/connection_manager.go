package session

import (
	"context"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

type connectOptions struct {
	version scorm.Version
	debug   *bool
}

type ConnectOption func(*connectOptions)

// WithVersion forces the protocol version instead of detecting it.
func WithVersion(v scorm.Version) ConnectOption {
	return func(o *connectOptions) { o.version = v }
}

func WithDebug(enabled bool) ConnectOption {
	return func(o *connectOptions) { o.debug = &enabled }
}

// Connect opens the runtime session, reads the learner name and completion
// status, and hydrates the suspend data. It does nothing when already
// connected. A failed init leaves the session disconnected.
func (s *Session) Connect(opts ...ConnectOption) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnected {
		return ResultApplied
	}

	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.version != "" && !o.version.Valid() {
		s.diagnostic("connect", "unsupported SCORM version %q", o.version)
		return s.done("connect", ResultInvalidArgument)
	}

	if o.version != "" {
		s.api.SetVersion(o.version)
	}
	if o.debug != nil {
		s.debug = *o.debug
		s.api.SetDebug(*o.debug)
	}

	s.state = StateConnecting
	if !s.api.Init() {
		s.state = StateDisconnected
		s.diagnostic("init", "could not create the SCORM API connection")
		return s.done("connect", ResultRejectedByRemote)
	}

	s.version = s.api.Version()
	s.learnerName = s.api.Get(scorm.LearnerNameField(s.version))
	s.completionStatus = s.api.GetStatus()
	s.state = StateConnected
	s.metrics.SetConnected(true)

	if err := s.suspend.hydrate(); err != nil {
		s.diagnostic("malformed_suspend_data", "discarding malformed suspend data: %v", err)
	}
	s.log.Debug("session connected", "version", s.version.String(), "status", s.completionStatus)
	s.publish()
	return s.done("connect", ResultApplied)
}

// Disconnect flushes the suspend data, writes the completion status, commits
// and terminates. Every step is attempted even when an earlier one fails. The
// session is reset only when terminate succeeds; otherwise it stays connected.
func (s *Session) Disconnect() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return ResultNotConnected
	}

	if _, err := s.suspend.flush(); err != nil {
		s.diagnostic("remote_rejected", "%v", err)
	}
	if scorm.CompletionStatus(s.completionStatus).Valid() {
		if !s.api.SetStatus(s.completionStatus) {
			s.diagnostic("remote_rejected", "could not commit completion status %q", s.completionStatus)
		}
	}
	if !s.api.Save() {
		s.diagnostic("remote_rejected", "could not save before closing the API connection")
	}
	if !s.api.Quit() {
		s.diagnostic("terminate", "could not close the API connection")
		return s.done("disconnect", ResultRejectedByRemote)
	}

	s.reset()
	s.log.Debug("session disconnected")
	s.publish()
	return s.done("disconnect", ResultApplied)
}

// ShutdownCallback disconnects the session when the process is about to exit.
type ShutdownCallback struct {
	session *Session
}

func NewShutdownCallback(s *Session) *ShutdownCallback {
	return &ShutdownCallback{session: s}
}

func (sc *ShutdownCallback) Invoke(context.Context) error {
	logger.InfoF("Closing learning session")
	if r := sc.session.Disconnect(); r == ResultRejectedByRemote {
		return fmt.Errorf("session disconnect: %s", r)
	}
	return nil
}
