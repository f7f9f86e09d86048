package session

import "github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"

// GetSuspendData returns a copy of the current suspend data. ok is false when
// the session is not connected.
func (s *Session) GetSuspendData() (data SuspendData, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return nil, false
	}
	return s.suspend.get(), true
}

// SetSuspendData stores value under key and writes the whole mapping to
// cmi.suspend_data. The key must be non-empty and the value neither nil nor an
// empty string. Values are kept as they decode from JSON, so numbers read back
// as float64.
func (s *Session) SetSuspendData(key string, value any) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return ResultNotConnected
	}

	r, err := s.suspend.set(key, value)
	switch r {
	case ResultApplied:
		s.save("the suspend data")
		s.publish()
	case ResultRejectedByRemote:
		s.diagnostic("remote_rejected", "%v", err)
	}
	return s.done("set_suspend_data", r)
}

// SetStatus writes a completion status. Values outside the CompletionStatus set
// are ignored without calling the API.
func (s *Session) SetStatus(status string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return ResultNotConnected
	}
	if !scorm.CompletionStatus(status).Valid() {
		return s.done("set_status", ResultInvalidArgument)
	}

	if !s.api.SetStatus(status) {
		s.diagnostic("remote_rejected", "could not set the status %q", status)
		return s.done("set_status", ResultRejectedByRemote)
	}
	s.completionStatus = status
	s.save("the status")
	s.publish()
	return s.done("set_status", ResultApplied)
}

// Set writes an arbitrary data model element and commits on success.
func (s *Session) Set(field, value string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return ResultNotConnected
	}

	if !s.api.Set(field, value) {
		s.diagnostic("remote_rejected", "could not set %s to %q", field, value)
		return s.done("set", ResultRejectedByRemote)
	}
	s.save(field)
	s.publish()
	return s.done("set", ResultApplied)
}

// Get reads an arbitrary data model element. ok is false when the session is
// not connected.
func (s *Session) Get(field string) (value string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return "", false
	}
	return s.api.Get(field), true
}
