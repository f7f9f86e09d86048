package scorm

import (
	"fmt"
	"log/slog"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/metrics"
)

// Wrapper implements API on top of a Driver found through a Locator. It detects
// the protocol version, keeps track of the connection, and applies the usual
// completion-status and exit-mode housekeeping. A Wrapper is not safe for
// concurrent use.
type Wrapper struct {
	locator Locator
	metrics *metrics.Collector
	log     *slog.Logger

	handleCompletionStatus bool
	handleExitMode         bool

	version          Version
	debug            bool
	driver           Driver
	active           bool
	completionStatus string
	exitStatus       string
}

type WrapperOption func(*Wrapper)

func WithMetrics(c *metrics.Collector) WrapperOption {
	return func(w *Wrapper) { w.metrics = c }
}

// WithCompletionStatusHandling controls whether Init promotes "not attempted"
// and "unknown" to "incomplete". Enabled by default.
func WithCompletionStatusHandling(enabled bool) WrapperOption {
	return func(w *Wrapper) { w.handleCompletionStatus = enabled }
}

// WithExitModeHandling controls whether Quit records an exit mode. Enabled by
// default.
func WithExitModeHandling(enabled bool) WrapperOption {
	return func(w *Wrapper) { w.handleExitMode = enabled }
}

func NewWrapper(locator Locator, opts ...WrapperOption) *Wrapper {
	w := &Wrapper{
		locator:                locator,
		log:                    logger.Component("scorm"),
		handleCompletionStatus: true,
		handleExitMode:         true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wrapper) trace(format string, args ...any) {
	if !w.debug {
		return
	}
	w.log.Info(fmt.Sprintf(format, args...), "version", string(w.version))
}

func (w *Wrapper) record(call string, ok bool) {
	w.metrics.RuntimeCall(call, ok)
}

func (w *Wrapper) lastError() (int, string) {
	code := w.driver.GetLastError()
	if code == 0 {
		return 0, ""
	}
	return code, fmt.Sprintf("%s (%s)", w.driver.GetErrorString(code), w.driver.GetDiagnostic(code))
}

func (w *Wrapper) find() (Driver, bool) {
	if w.version != "" {
		driver, ok := w.locator.Find(w.version)
		if !ok {
			w.trace("SCORM version %s was specified, but its runtime API could not be found", w.version)
		}
		return driver, ok
	}
	for _, v := range DetectionOrder {
		if driver, ok := w.locator.Find(v); ok {
			w.version = v
			return driver, true
		}
	}
	w.trace("unable to find a runtime API")
	return nil, false
}

func (w *Wrapper) Init() bool {
	if w.active {
		w.trace("Init aborted: connection already active")
		return false
	}

	driver, ok := w.find()
	w.record("Find", ok)
	if !ok {
		return false
	}

	ok = driver.Initialize()
	w.record("Initialize", ok)
	w.driver = driver
	if code, text := w.lastError(); !ok || code != 0 {
		w.trace("Init failed: error %d %s", code, text)
		w.driver = nil
		return false
	}

	w.active = true
	w.trace("Init succeeded")

	if w.handleCompletionStatus {
		status := w.GetStatus()
		if status == "not attempted" || status == "unknown" {
			w.SetStatus(string(StatusIncomplete))
		}
		if status != "" {
			w.Save()
		}
	}
	return true
}

func (w *Wrapper) Get(field string) string {
	if !w.active {
		w.trace("Get(%s) failed: API connection is inactive", field)
		return ""
	}

	value := w.driver.GetValue(field)
	code, text := w.lastError()
	ok := value != "" || code == 0
	w.record("GetValue", ok)
	if !ok {
		w.trace("Get(%s) failed: error %d %s", field, code, text)
		return value
	}

	switch field {
	case StatusField(w.version):
		w.completionStatus = value
	case ExitField(w.version):
		w.exitStatus = value
	}
	w.trace("Get(%s) = %q", field, value)
	return value
}

func (w *Wrapper) Set(field, value string) bool {
	if !w.active {
		w.trace("Set(%s) failed: API connection is inactive", field)
		return false
	}

	ok := w.driver.SetValue(field, value)
	w.record("SetValue", ok)
	if !ok {
		code, text := w.lastError()
		w.trace("Set(%s, %q) failed: error %d %s", field, value, code, text)
		return false
	}

	switch field {
	case StatusField(w.version):
		w.completionStatus = value
	case ExitField(w.version):
		w.exitStatus = value
	}
	w.trace("Set(%s, %q) succeeded", field, value)
	return true
}

func (w *Wrapper) GetStatus() string {
	if !w.active {
		w.trace("GetStatus failed: API connection is inactive")
		return ""
	}
	if w.version == Version2004 {
		switch success := w.Get(SuccessStatusField); success {
		case string(StatusPassed), string(StatusFailed):
			w.completionStatus = success
			return success
		}
	}
	return w.Get(StatusField(w.version))
}

func (w *Wrapper) SetStatus(status string) bool {
	if !w.active {
		w.trace("SetStatus failed: API connection is inactive")
		return false
	}
	if status == "" {
		w.trace("SetStatus failed: status was not specified")
		return false
	}
	if w.version != Version2004 {
		return w.Set(StatusField(w.version), status)
	}

	// 2004 splits the 1.2 lesson status across completion and success.
	var ok bool
	switch status {
	case string(StatusPassed), string(StatusFailed):
		ok = w.Set(SuccessStatusField, status) && w.Set(StatusField(w.version), string(StatusCompleted))
	case string(StatusBrowsed):
		ok = w.Set(StatusField(w.version), string(StatusIncomplete))
	default:
		ok = w.Set(StatusField(w.version), status)
	}
	if ok {
		w.completionStatus = status
	}
	return ok
}

func (w *Wrapper) Save() bool {
	if !w.active {
		w.trace("Save failed: API connection is inactive")
		return false
	}
	ok := w.driver.Commit()
	w.record("Commit", ok)
	if !ok {
		code, text := w.lastError()
		w.trace("Save failed: error %d %s", code, text)
	}
	return ok
}

// Quit records the exit mode, commits and terminates. The commit result does not
// gate Terminate, which commits again on its own.
func (w *Wrapper) Quit() bool {
	if !w.active {
		w.trace("Quit aborted: API connection is inactive")
		return false
	}

	if w.handleExitMode && w.exitStatus == "" {
		if w.completionStatus != string(StatusCompleted) && w.completionStatus != string(StatusPassed) {
			w.Set(ExitField(w.version), "suspend")
		} else if w.version == Version12 {
			w.Set(ExitField(w.version), "logout")
		} else {
			w.Set(ExitField(w.version), "normal")
		}
	}

	w.Save()

	ok := w.driver.Terminate()
	w.record("Terminate", ok)
	if !ok {
		code, text := w.lastError()
		w.trace("Quit failed: error %d %s", code, text)
		return false
	}

	w.active = false
	w.driver = nil
	w.completionStatus = ""
	w.exitStatus = ""
	w.trace("Quit succeeded")
	return true
}

func (w *Wrapper) Version() Version {
	return w.version
}

// SetVersion takes effect on the next Init; it is ignored while connected.
func (w *Wrapper) SetVersion(v Version) {
	if w.active {
		w.trace("SetVersion(%s) ignored: connection already active", v)
		return
	}
	w.version = v
}

func (w *Wrapper) SetDebug(enabled bool) {
	w.debug = enabled
}

func (w *Wrapper) Active() bool {
	return w.active
}
