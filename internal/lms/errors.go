package lms

import "github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"

type operation int

const (
	opInitialize operation = iota
	opTerminate
	opGetValue
	opSetValue
	opCommit
)

type condition int

const (
	condNone condition = iota
	condGeneral
	condInitFailure
	condAlreadyInitialized
	condInstanceTerminated
	condTerminationFailure
	condBeforeInit
	condAfterTermination
	condCommitFailure
	condUndefinedElement
	condValueNotInitialized
	condReadOnly
	condWriteOnly
	condTypeMismatch
	condOutOfRange
)

var beforeInit2004 = map[operation]int{opTerminate: 112, opGetValue: 122, opSetValue: 132, opCommit: 142}
var afterTermination2004 = map[operation]int{opTerminate: 113, opGetValue: 123, opSetValue: 133, opCommit: 143}

// errorCode returns the error number the given version reports for a condition
// raised by op.
func errorCode(v scorm.Version, c condition, op operation) int {
	if v == scorm.Version12 {
		switch c {
		case condNone, condValueNotInitialized:
			return 0
		case condBeforeInit:
			return 301
		case condUndefinedElement:
			return 201
		case condReadOnly:
			return 403
		case condWriteOnly:
			return 404
		case condTypeMismatch, condOutOfRange:
			return 405
		default:
			return 101
		}
	}

	switch c {
	case condNone:
		return 0
	case condInitFailure:
		return 102
	case condAlreadyInitialized:
		return 103
	case condInstanceTerminated:
		return 104
	case condTerminationFailure:
		return 111
	case condBeforeInit:
		return beforeInit2004[op]
	case condAfterTermination:
		return afterTermination2004[op]
	case condCommitFailure:
		return 391
	case condUndefinedElement:
		return 401
	case condValueNotInitialized:
		return 403
	case condReadOnly:
		return 404
	case condWriteOnly:
		return 405
	case condTypeMismatch:
		return 406
	case condOutOfRange:
		return 407
	default:
		return 101
	}
}

var errorStrings12 = map[int]string{
	0:   "No error",
	101: "General exception",
	201: "Invalid argument error",
	202: "Element cannot have children",
	203: "Element not an array - cannot have count",
	301: "Not initialized",
	401: "Not implemented error",
	402: "Invalid set value, element is a keyword",
	403: "Element is read only",
	404: "Element is write only",
	405: "Incorrect data type",
}

var errorStrings2004 = map[int]string{
	0:   "No error",
	101: "General exception",
	102: "General initialization failure",
	103: "Already initialized",
	104: "Content instance terminated",
	111: "General termination failure",
	112: "Termination before initialization",
	113: "Termination after termination",
	122: "Retrieve data before initialization",
	123: "Retrieve data after termination",
	132: "Store data before initialization",
	133: "Store data after termination",
	142: "Commit before initialization",
	143: "Commit after termination",
	201: "General argument error",
	301: "General get failure",
	351: "General set failure",
	391: "General commit failure",
	401: "Undefined data model element",
	402: "Unimplemented data model element",
	403: "Data model element value not initialized",
	404: "Data model element is read only",
	405: "Data model element is write only",
	406: "Data model element type mismatch",
	407: "Data model element value out of range",
	408: "Data model dependency not established",
}

func errorString(v scorm.Version, code int) string {
	table := errorStrings2004
	if v == scorm.Version12 {
		table = errorStrings12
	}
	if s, ok := table[code]; ok {
		return s
	}
	return ""
}
