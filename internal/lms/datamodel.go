package lms

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

type elementRule struct {
	readOnly  bool
	writeOnly bool
	vocab     []string
	maxLen    int
}

var rules12 = map[string]elementRule{
	"cmi.core.student_id":      {readOnly: true},
	"cmi.core.student_name":    {readOnly: true},
	"cmi.core.credit":          {readOnly: true},
	"cmi.core.entry":           {readOnly: true},
	"cmi.core.total_time":      {readOnly: true},
	"cmi.core.lesson_mode":     {readOnly: true},
	"cmi.launch_data":          {readOnly: true},
	"cmi.core.lesson_status":   {vocab: []string{"passed", "completed", "failed", "incomplete", "browsed", "not attempted"}},
	"cmi.core.exit":            {writeOnly: true, vocab: []string{"time-out", "suspend", "logout", ""}},
	"cmi.core.session_time":    {writeOnly: true},
	"cmi.core.lesson_location": {maxLen: 255},
	"cmi.suspend_data":         {maxLen: 4096},
}

var rules2004 = map[string]elementRule{
	"cmi.learner_id":        {readOnly: true},
	"cmi.learner_name":      {readOnly: true},
	"cmi.credit":            {readOnly: true},
	"cmi.entry":             {readOnly: true},
	"cmi.total_time":        {readOnly: true},
	"cmi.mode":              {readOnly: true},
	"cmi.launch_data":       {readOnly: true},
	"cmi.completion_status": {vocab: []string{"completed", "incomplete", "not attempted", "unknown"}},
	"cmi.success_status":    {vocab: []string{"passed", "failed", "unknown"}},
	"cmi.exit":              {writeOnly: true, vocab: []string{"time-out", "suspend", "logout", "normal", ""}},
	"cmi.session_time":      {writeOnly: true},
	"cmi.location":          {maxLen: 1000},
	"cmi.suspend_data":      {maxLen: 64000},
}

func rulesFor(v scorm.Version) map[string]elementRule {
	if v == scorm.Version12 {
		return rules12
	}
	return rules2004
}

func definedElement(element string) bool {
	return strings.HasPrefix(element, "cmi.") && len(element) > len("cmi.") && !strings.HasSuffix(element, ".")
}

func checkGet(v scorm.Version, element string) condition {
	if !definedElement(element) {
		return condUndefinedElement
	}
	if rulesFor(v)[element].writeOnly {
		return condWriteOnly
	}
	return condNone
}

func checkSet(v scorm.Version, element, value string) condition {
	if !definedElement(element) {
		return condUndefinedElement
	}
	rule := rulesFor(v)[element]
	if rule.readOnly {
		return condReadOnly
	}
	if rule.vocab != nil && !slices.Contains(rule.vocab, value) {
		return condTypeMismatch
	}
	if rule.maxLen > 0 && utf8.RuneCountInString(value) > rule.maxLen {
		return condOutOfRange
	}
	return condNone
}
