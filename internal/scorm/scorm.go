// Package scorm holds the SCORM runtime vocabulary shared by the embedded LMS
// and the learning session, the capability contracts between them, and the
// Wrapper that turns a raw runtime API into the API a session drives.
package scorm

import "fmt"

// Version selects the runtime API flavor: "1.2" (API) or "2004" (API_1484_11).
type Version string

const (
	Version12   Version = "1.2"
	Version2004 Version = "2004"
)

// DetectionOrder is the order in which versions are probed when none is requested.
var DetectionOrder = []Version{Version2004, Version12}

func (v Version) Valid() bool {
	return v == Version12 || v == Version2004
}

func (v Version) String() string {
	return string(v)
}

func ParseVersion(s string) (Version, error) {
	v := Version(s)
	if !v.Valid() {
		return "", fmt.Errorf("unsupported SCORM version %q", s)
	}
	return v, nil
}

// CompletionStatus is the closed set of values a session may commit to the
// remote status field.
type CompletionStatus string

const (
	StatusPassed       CompletionStatus = "passed"
	StatusCompleted    CompletionStatus = "completed"
	StatusFailed       CompletionStatus = "failed"
	StatusIncomplete   CompletionStatus = "incomplete"
	StatusBrowsed      CompletionStatus = "browsed"
	StatusNotAttempted CompletionStatus = "not attempted"
)

var completionStatuses = []CompletionStatus{
	StatusPassed,
	StatusCompleted,
	StatusFailed,
	StatusIncomplete,
	StatusBrowsed,
	StatusNotAttempted,
}

func CompletionStatuses() []CompletionStatus {
	out := make([]CompletionStatus, len(completionStatuses))
	copy(out, completionStatuses)
	return out
}

func (s CompletionStatus) Valid() bool {
	for _, status := range completionStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s CompletionStatus) String() string {
	return string(s)
}

const SuspendDataField = "cmi.suspend_data"

func LearnerNameField(v Version) string {
	if v == Version12 {
		return "cmi.core.student_name"
	}
	return "cmi.learner_name"
}

func LearnerIDField(v Version) string {
	if v == Version12 {
		return "cmi.core.student_id"
	}
	return "cmi.learner_id"
}

// StatusField is the element behind the status accessor.
func StatusField(v Version) string {
	if v == Version12 {
		return "cmi.core.lesson_status"
	}
	return "cmi.completion_status"
}

// SuccessStatusField carries passed/failed under 2004, where the completion
// vocabulary has no room for them.
const SuccessStatusField = "cmi.success_status"

func ExitField(v Version) string {
	if v == Version12 {
		return "cmi.core.exit"
	}
	return "cmi.exit"
}

func EntryField(v Version) string {
	if v == Version12 {
		return "cmi.core.entry"
	}
	return "cmi.entry"
}
