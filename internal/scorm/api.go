package scorm

// API is the runtime capability a learning session drives. Implementations
// report failure through their boolean results and never panic.
type API interface {
	Init() bool
	Get(field string) string
	Set(field, value string) bool
	// GetStatus and SetStatus are the get and set modes of the status accessor.
	GetStatus() string
	SetStatus(status string) bool
	// Save commits buffered writes.
	Save() bool
	// Quit terminates the runtime session.
	Quit() bool
	Version() Version
	SetVersion(v Version)
	SetDebug(enabled bool)
}

// Driver is one raw runtime API instance, the object an LMS exposes as API for
// SCORM 1.2 or API_1484_11 for SCORM 2004.
type Driver interface {
	Initialize() bool
	Terminate() bool
	GetValue(element string) string
	SetValue(element, value string) bool
	Commit() bool
	GetLastError() int
	GetErrorString(code int) string
	GetDiagnostic(code int) string
}

// Locator finds the runtime API instance a host exposes for a version.
type Locator interface {
	Find(v Version) (Driver, bool)
}

type LocatorFunc func(v Version) (Driver, bool)

func (f LocatorFunc) Find(v Version) (Driver, bool) {
	return f(v)
}
