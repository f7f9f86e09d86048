// Package lms is an embedded learning management system: it exposes SCORM 1.2
// and 2004 runtime API instances to content and persists each learner's attempt
// in a memory, MongoDB or SQLite store.
package lms

import (
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

var (
	ErrAttemptNotFound = errors.New("attempt does not exist")
	ErrEmptyLearnerID  = errors.New("learner_id is empty")
	ErrEmptyCourseID   = errors.New("course_id is empty")
)

// Attempt is one learner's run through one course: the cmi data model as the
// content last committed it.
type Attempt struct {
	AttemptID string            `json:"attempt_id" yaml:"attempt_id"`
	LearnerID string            `json:"learner_id" yaml:"learner_id"`
	CourseID  string            `json:"course_id" yaml:"course_id"`
	Version   scorm.Version     `json:"version" yaml:"version"`
	Sessions  int               `json:"sessions" yaml:"sessions"`
	Data      map[string]string `json:"data" yaml:"data"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
}

func NewAttempt(learnerID, courseID string, version scorm.Version) *Attempt {
	now := time.Now().UTC()
	return &Attempt{
		AttemptID: uuid.NewString(),
		LearnerID: learnerID,
		CourseID:  courseID,
		Version:   version,
		Data:      make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = maps.Clone(a.Data)
	if clone.Data == nil {
		clone.Data = make(map[string]string)
	}
	return &clone
}

func (a *Attempt) validate() error {
	if a.LearnerID == "" {
		return ErrEmptyLearnerID
	}
	if a.CourseID == "" {
		return ErrEmptyCourseID
	}
	return nil
}

// sharedElements maps elements that exist under different names in the two
// versions, so an attempt started under one version can resume under the other.
var sharedElements = [][2]string{
	{"cmi.core.lesson_location", "cmi.location"},
	{"cmi.core.score.raw", "cmi.score.raw"},
	{"cmi.core.score.min", "cmi.score.min"},
	{"cmi.core.score.max", "cmi.score.max"},
	{"cmi.core.exit", "cmi.exit"},
	{"cmi.core.total_time", "cmi.total_time"},
}

// migrate rewrites the attempt's data for another version. The suspend data
// carries over unchanged; the 1.2 lesson status splits into the 2004 completion
// and success statuses and back.
func (a *Attempt) migrate(to scorm.Version) {
	if a.Version == to || !to.Valid() {
		return
	}
	from := a.Version
	data := make(map[string]string, len(a.Data))
	if v, ok := a.Data[scorm.SuspendDataField]; ok {
		data[scorm.SuspendDataField] = v
	}
	for _, pair := range sharedElements {
		src, dst := pair[0], pair[1]
		if from == scorm.Version2004 {
			src, dst = dst, src
		}
		if v, ok := a.Data[src]; ok {
			data[dst] = v
		}
	}

	switch to {
	case scorm.Version2004:
		switch status := a.Data["cmi.core.lesson_status"]; status {
		case "passed", "failed":
			data["cmi.completion_status"] = "completed"
			data["cmi.success_status"] = status
		case "completed", "incomplete", "not attempted":
			data["cmi.completion_status"] = status
		case "browsed":
			data["cmi.completion_status"] = "incomplete"
		}
	case scorm.Version12:
		completion := a.Data["cmi.completion_status"]
		switch success := a.Data["cmi.success_status"]; {
		case success == "passed" || success == "failed":
			data["cmi.core.lesson_status"] = success
		case completion == "completed" || completion == "incomplete" || completion == "not attempted":
			data["cmi.core.lesson_status"] = completion
		}
	}

	a.Data = data
	a.Version = to
}
