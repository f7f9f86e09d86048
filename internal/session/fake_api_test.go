package session

import "github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"

// fakeAPI records every call and keeps its data across sessions, like an LMS
// that persists the attempt.
type fakeAPI struct {
	calls []string
	data  map[string]string

	detect  scorm.Version
	version scorm.Version
	debug   bool
	active  bool

	initOK       bool
	saveOK       bool
	quitOK       bool
	rejectStatus bool
	rejectSet    map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		data:      map[string]string{},
		detect:    scorm.Version2004,
		initOK:    true,
		saveOK:    true,
		quitOK:    true,
		rejectSet: map[string]bool{},
	}
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) reset() {
	f.calls = nil
}

func (f *fakeAPI) Init() bool {
	f.record("Init")
	if !f.initOK {
		return false
	}
	if f.version == "" {
		f.version = f.detect
	}
	f.active = true
	return true
}

func (f *fakeAPI) Get(field string) string {
	f.record("Get " + field)
	return f.data[field]
}

func (f *fakeAPI) Set(field, value string) bool {
	f.record("Set " + field)
	if f.rejectSet[field] {
		return false
	}
	f.data[field] = value
	return true
}

func (f *fakeAPI) GetStatus() string {
	f.record("GetStatus")
	return f.data[scorm.StatusField(f.version)]
}

func (f *fakeAPI) SetStatus(status string) bool {
	f.record("SetStatus " + status)
	if f.rejectStatus {
		return false
	}
	f.data[scorm.StatusField(f.version)] = status
	return true
}

func (f *fakeAPI) Save() bool {
	f.record("Save")
	return f.saveOK
}

func (f *fakeAPI) Quit() bool {
	f.record("Quit")
	if !f.quitOK {
		return false
	}
	f.active = false
	return true
}

func (f *fakeAPI) Version() scorm.Version {
	return f.version
}

func (f *fakeAPI) SetVersion(v scorm.Version) {
	f.record("SetVersion " + string(v))
	f.version = v
}

func (f *fakeAPI) SetDebug(enabled bool) {
	f.record("SetDebug")
	f.debug = enabled
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}
