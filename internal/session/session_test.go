package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/lms"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

func connected(t *testing.T, api *fakeAPI, opts ...ConnectOption) *Session {
	t.Helper()
	s := New(api)
	require.Equal(t, ResultApplied, s.Connect(opts...))
	api.reset()
	return s
}

func TestConnectReadsVersionLearnerNameFirst(t *testing.T) {
	for _, v := range []scorm.Version{scorm.Version12, scorm.Version2004} {
		t.Run(string(v), func(t *testing.T) {
			api := newFakeAPI()
			api.data[scorm.LearnerNameField(v)] = "Ada"
			api.data[scorm.StatusField(v)] = "incomplete"

			s := New(api)
			require.Equal(t, ResultApplied, s.Connect(WithVersion(v)))

			require.Equal(t, []string{
				"SetVersion " + string(v),
				"Init",
				"Get " + scorm.LearnerNameField(v),
				"GetStatus",
				"Get " + scorm.SuspendDataField,
			}, api.calls)

			snap := s.Snapshot()
			assert.True(t, snap.APIConnected)
			assert.Equal(t, "Ada", snap.LearnerName)
			assert.Equal(t, "incomplete", snap.CompletionStatus)
			assert.Equal(t, v, snap.ScormVersion)
			assert.Equal(t, SuspendData{}, snap.SuspendData)
		})
	}
}

func TestConnectDetectsVersion(t *testing.T) {
	api := newFakeAPI()
	api.detect = scorm.Version12
	api.data["cmi.core.student_name"] = "Grace"

	s := New(api)
	require.Equal(t, ResultApplied, s.Connect(WithDebug(true)))
	require.True(t, api.debug)
	require.Equal(t, scorm.Version12, s.Snapshot().ScormVersion)
	require.Equal(t, "Grace", s.Snapshot().LearnerName)
	require.Equal(t, 0, api.count("SetVersion 1.2"))
}

func TestConnectFailureStaysDisconnected(t *testing.T) {
	api := newFakeAPI()
	api.initOK = false

	s := New(api)
	require.Equal(t, ResultRejectedByRemote, s.Connect())
	require.Equal(t, StateDisconnected, s.State())
	require.False(t, s.Snapshot().APIConnected)
	require.Equal(t, []string{"Init"}, api.calls)
}

func TestConnectRejectsUnknownVersion(t *testing.T) {
	api := newFakeAPI()
	s := New(api)
	require.Equal(t, ResultInvalidArgument, s.Connect(WithVersion("3.0")))
	require.Empty(t, api.calls)
	require.False(t, s.Connected())
}

func TestConnectAndDisconnectAreIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.data[scorm.SuspendDataField] = `{"lesson":3}`
	s := connected(t, api)
	before := s.Snapshot()

	require.Equal(t, ResultApplied, s.Connect())
	require.Empty(t, api.calls)
	require.Equal(t, before, s.Snapshot())

	require.Equal(t, ResultApplied, s.Disconnect())
	afterFirst := s.Snapshot()
	api.reset()
	require.Equal(t, ResultNotConnected, s.Disconnect())
	require.Empty(t, api.calls)
	require.Equal(t, afterFirst, s.Snapshot())
}

func TestDisconnectSequence(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.learner_name"] = "Ada"
	api.data["cmi.completion_status"] = "completed"
	s := connected(t, api)

	require.Equal(t, ResultApplied, s.Disconnect())
	require.Equal(t, []string{
		"Set " + scorm.SuspendDataField,
		"SetStatus completed",
		"Save",
		"Quit",
	}, api.calls)

	require.Equal(t, Snapshot{
		CompletionStatus: "incomplete",
		SuspendData:      SuspendData{},
	}, s.Snapshot())
	require.Equal(t, StateDisconnected, s.State())
}

func TestDisconnectSkipsStatusOutsideVocabulary(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.completion_status"] = "unknown"
	s := connected(t, api)

	require.Equal(t, ResultApplied, s.Disconnect())
	require.Equal(t, []string{"Set " + scorm.SuspendDataField, "Save", "Quit"}, api.calls)
}

func TestDisconnectAttemptsEveryStep(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.completion_status"] = "incomplete"
	s := connected(t, api)

	api.rejectSet[scorm.SuspendDataField] = true
	api.rejectStatus = true
	api.saveOK = false
	require.Equal(t, ResultApplied, s.Disconnect())
	require.Equal(t, []string{
		"Set " + scorm.SuspendDataField,
		"SetStatus incomplete",
		"Save",
		"Quit",
	}, api.calls)
}

func TestDisconnectFailedQuitKeepsSession(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.learner_name"] = "Ada"
	s := connected(t, api)
	require.Equal(t, ResultApplied, s.SetSuspendData("page", "intro"))

	api.quitOK = false
	require.Equal(t, ResultRejectedByRemote, s.Disconnect())
	require.True(t, s.Connected())
	snap := s.Snapshot()
	require.Equal(t, "Ada", snap.LearnerName)
	require.Equal(t, SuspendData{"page": "intro"}, snap.SuspendData)

	api.quitOK = true
	require.Equal(t, ResultApplied, s.Disconnect())
	require.False(t, s.Connected())
}

func TestFacadeWhileDisconnected(t *testing.T) {
	api := newFakeAPI()
	s := New(api)

	assert.Equal(t, ResultNotConnected, s.Set("x", "y"))
	v, ok := s.Get("x")
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, ResultNotConnected, s.SetSuspendData("a", "b"))
	data, ok := s.GetSuspendData()
	assert.False(t, ok)
	assert.Nil(t, data)
	assert.Equal(t, ResultNotConnected, s.SetStatus("passed"))
	assert.Empty(t, api.calls)
}

func TestSetStatus(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.completion_status"] = "incomplete"
	s := connected(t, api)

	require.Equal(t, ResultInvalidArgument, s.SetStatus("bogus"))
	require.Empty(t, api.calls)
	require.Equal(t, "incomplete", s.Snapshot().CompletionStatus)

	require.Equal(t, ResultApplied, s.SetStatus("passed"))
	require.Equal(t, []string{"SetStatus passed", "Save"}, api.calls)
	require.Equal(t, "passed", s.Snapshot().CompletionStatus)
}

func TestSetStatusRejected(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.completion_status"] = "incomplete"
	s := connected(t, api)

	api.rejectStatus = true
	require.Equal(t, ResultRejectedByRemote, s.SetStatus("completed"))
	require.Equal(t, []string{"SetStatus completed"}, api.calls)
	require.Equal(t, "incomplete", s.Snapshot().CompletionStatus)
}

func TestFailedSaveKeepsWriteAndReports(t *testing.T) {
	collector := metrics.NewCollector("test")
	api := newFakeAPI()
	s := New(api, WithMetrics(collector))
	require.Equal(t, ResultApplied, s.Connect())
	api.saveOK = false
	api.reset()

	require.Equal(t, ResultApplied, s.SetStatus("completed"))
	require.Equal(t, ResultApplied, s.Set("cmi.location", "page-3"))
	require.Equal(t, ResultApplied, s.SetSuspendData("page", 3))
	require.Equal(t, 3, api.count("Save"))

	snap := s.Snapshot()
	require.Equal(t, "completed", snap.CompletionStatus)
	require.Equal(t, SuspendData{"page": float64(3)}, snap.SuspendData)
	require.Equal(t, 3.0, gatherValues(t, collector)["test_diagnostics_total/remote_rejected"])
}

func TestSetAndGetPassThrough(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.location"] = "page-2"
	s := connected(t, api)

	v, ok := s.Get("cmi.location")
	require.True(t, ok)
	require.Equal(t, "page-2", v)

	api.reset()
	require.Equal(t, ResultApplied, s.Set("cmi.location", "page-3"))
	require.Equal(t, []string{"Set cmi.location", "Save"}, api.calls)

	api.reset()
	api.rejectSet["cmi.interactions.0.id"] = true
	require.Equal(t, ResultRejectedByRemote, s.Set("cmi.interactions.0.id", "q1"))
	require.Equal(t, []string{"Set cmi.interactions.0.id"}, api.calls)
	require.Zero(t, api.count("Save"))
}

func TestHydrate(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		want   SuspendData
	}{
		{name: "object", remote: `{"lesson":3}`, want: SuspendData{"lesson": float64(3)}},
		{name: "empty", remote: "", want: SuspendData{}},
		{name: "null", remote: "null", want: SuspendData{}},
		{name: "malformed", remote: `{"lesson":`, want: SuspendData{}},
		{name: "not an object", remote: `[1,2]`, want: SuspendData{}},
		{name: "nested", remote: `{"a":{"b":[true,"x"]}}`, want: SuspendData{"a": map[string]any{"b": []any{true, "x"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			api.data[scorm.SuspendDataField] = tc.remote
			s := connected(t, api)

			data, ok := s.GetSuspendData()
			require.True(t, ok)
			require.Equal(t, tc.want, data)
			require.True(t, s.Connected())
		})
	}
}

func TestSetSuspendData(t *testing.T) {
	api := newFakeAPI()
	api.data[scorm.SuspendDataField] = `{"lesson":3}`
	s := connected(t, api)

	require.Equal(t, ResultApplied, s.SetSuspendData("answers", []string{"a", "c"}))
	require.Equal(t, []string{"Set " + scorm.SuspendDataField, "Save"}, api.calls)
	require.JSONEq(t, `{"lesson":3,"answers":["a","c"]}`, api.data[scorm.SuspendDataField])

	require.Equal(t, ResultApplied, s.SetSuspendData("lesson", 4))
	data, _ := s.GetSuspendData()
	require.Equal(t, SuspendData{"lesson": float64(4), "answers": []any{"a", "c"}}, data)

	data["lesson"] = "mutated"
	again, _ := s.GetSuspendData()
	require.Equal(t, float64(4), again["lesson"])
}

func TestSetSuspendDataRejected(t *testing.T) {
	api := newFakeAPI()
	api.data[scorm.SuspendDataField] = `{"lesson":3}`
	s := connected(t, api)

	api.rejectSet[scorm.SuspendDataField] = true
	require.Equal(t, ResultRejectedByRemote, s.SetSuspendData("lesson", 5))
	require.Equal(t, []string{"Set " + scorm.SuspendDataField}, api.calls)
	data, _ := s.GetSuspendData()
	require.Equal(t, SuspendData{"lesson": float64(3)}, data)
}

func TestSetSuspendDataInvalidArguments(t *testing.T) {
	api := newFakeAPI()
	s := connected(t, api)

	require.Equal(t, ResultInvalidArgument, s.SetSuspendData("", "x"))
	require.Equal(t, ResultInvalidArgument, s.SetSuspendData("k", nil))
	require.Equal(t, ResultInvalidArgument, s.SetSuspendData("k", ""))
	require.Equal(t, ResultInvalidArgument, s.SetSuspendData("k", make(chan int)))
	require.Empty(t, api.calls)

	require.Equal(t, ResultApplied, s.SetSuspendData("score", 0))
	require.Equal(t, ResultApplied, s.SetSuspendData("done", false))
}

func TestSuspendDataRoundTripsAcrossSessions(t *testing.T) {
	api := newFakeAPI()
	s := connected(t, api)

	require.Equal(t, ResultApplied, s.SetSuspendData("progress", map[string]any{"page": 7, "seen": []int{1, 2}}))
	require.Equal(t, ResultApplied, s.Disconnect())
	data, ok := s.GetSuspendData()
	require.False(t, ok)
	require.Nil(t, data)

	require.Equal(t, ResultApplied, s.Connect())
	data, ok = s.GetSuspendData()
	require.True(t, ok)
	require.Equal(t, map[string]any{"page": float64(7), "seen": []any{float64(1), float64(2)}}, data["progress"])
}

func TestSuspendDataEncodingRoundTrip(t *testing.T) {
	cases := []SuspendData{
		{},
		{"a": "b"},
		{"n": 1.5, "t": true, "nil": nil},
		{"nested": map[string]any{"deep": map[string]any{"list": []any{"x", 2.0, false}}}},
	}
	for _, data := range cases {
		raw, err := data.Encode()
		require.NoError(t, err)
		decoded, err := DecodeSuspendData(raw)
		require.NoError(t, err)
		require.Equal(t, data, decoded)
	}

	raw, err := SuspendData(nil).Encode()
	require.NoError(t, err)
	require.Equal(t, "{}", raw)
}

func TestSubscribe(t *testing.T) {
	api := newFakeAPI()
	api.data["cmi.completion_status"] = "incomplete"
	s := New(api)

	updates, cancel := s.Subscribe()
	require.Equal(t, 1, s.Subscribers())
	first := <-updates
	require.False(t, first.APIConnected)

	require.Equal(t, ResultApplied, s.Connect())
	require.Equal(t, ResultApplied, s.SetStatus("completed"))

	// only the latest snapshot is kept for a slow reader
	latest := <-updates
	require.True(t, latest.APIConnected)
	require.Equal(t, "completed", latest.CompletionStatus)
	select {
	case <-updates:
		t.Fatal("unexpected buffered snapshot")
	default:
	}

	cancel()
	cancel()
	_, open := <-updates
	require.False(t, open)
	require.Equal(t, 0, s.Subscribers())
}

func TestShutdownCallback(t *testing.T) {
	api := newFakeAPI()
	s := connected(t, api)
	cb := NewShutdownCallback(s)

	api.quitOK = false
	require.Error(t, cb.Invoke(context.Background()))
	require.True(t, s.Connected())

	api.quitOK = true
	require.NoError(t, cb.Invoke(context.Background()))
	require.False(t, s.Connected())
	require.NoError(t, cb.Invoke(context.Background()))
}

func gatherValues(t *testing.T, collector *metrics.Collector) map[string]float64 {
	t.Helper()
	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := []string{mf.GetName()}
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetValue())
			}
			key := strings.Join(labels, "/")
			if m.GetCounter() != nil {
				values[key] = m.GetCounter().GetValue()
			} else if m.GetGauge() != nil {
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestSessionMetrics(t *testing.T) {
	collector := metrics.NewCollector("test")
	api := newFakeAPI()
	s := New(api, WithMetrics(collector))
	require.Equal(t, ResultApplied, s.Connect())
	require.Equal(t, ResultInvalidArgument, s.SetStatus("bogus"))
	api.rejectStatus = true
	require.Equal(t, ResultRejectedByRemote, s.SetStatus("passed"))

	values := gatherValues(t, collector)
	require.Equal(t, 1.0, values["test_session_operations_total/connect/applied"])
	require.Equal(t, 1.0, values["test_session_operations_total/set_status/invalid_argument"])
	require.Equal(t, 1.0, values["test_session_operations_total/set_status/rejected_by_remote"])
	require.Equal(t, 1.0, values["test_diagnostics_total/remote_rejected"])
	require.Equal(t, 1.0, values["test_session_connected"])
}

func TestSessionOverEmbeddedLMS(t *testing.T) {
	store := lms.NewMemoryStore()
	host := lms.NewHost(store, lms.Learner{ID: "learner-1", Name: "Ada"}, "course-1", nil, time.Second)

	s := New(scorm.NewWrapper(host))
	require.Equal(t, ResultApplied, s.Connect())
	snap := s.Snapshot()
	require.Equal(t, scorm.Version2004, snap.ScormVersion)
	require.Equal(t, "Ada", snap.LearnerName)
	require.Equal(t, "incomplete", snap.CompletionStatus)

	require.Equal(t, ResultApplied, s.SetSuspendData("lesson", 3))
	require.Equal(t, ResultRejectedByRemote, s.Set("cmi.learner_name", "Mallory"))
	require.Equal(t, ResultApplied, s.Disconnect())

	s = New(scorm.NewWrapper(lms.NewHost(store, lms.Learner{ID: "learner-1", Name: "Ada"}, "course-1", []scorm.Version{scorm.Version12}, time.Second)))
	require.Equal(t, ResultApplied, s.Connect())
	require.Equal(t, scorm.Version12, s.Snapshot().ScormVersion)
	data, ok := s.GetSuspendData()
	require.True(t, ok)
	require.Equal(t, SuspendData{"lesson": float64(3)}, data)
	entry, _ := s.Get("cmi.core.entry")
	require.Equal(t, "resume", entry)
	require.Equal(t, ResultApplied, s.SetStatus("passed"))
	require.Equal(t, ResultApplied, s.Disconnect())

	attempt, err := host.LoadAttempt(context.Background())
	require.NoError(t, err)
	require.Equal(t, scorm.Version12, attempt.Version)
	require.Equal(t, "passed", attempt.Data["cmi.core.lesson_status"])
	require.Equal(t, "logout", attempt.Data["cmi.core.exit"])
	require.Equal(t, 2, attempt.Sessions)
}

func TestSetStatusOverEmbeddedLMS2004(t *testing.T) {
	tests := []struct {
		status     scorm.CompletionStatus
		completion string
		success    string
		exit       string
	}{
		{scorm.StatusPassed, "completed", "passed", "normal"},
		{scorm.StatusCompleted, "completed", "unknown", "normal"},
		{scorm.StatusFailed, "completed", "failed", "suspend"},
		{scorm.StatusIncomplete, "incomplete", "unknown", "suspend"},
		{scorm.StatusBrowsed, "incomplete", "unknown", "suspend"},
		{scorm.StatusNotAttempted, "not attempted", "unknown", "suspend"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			host := lms.NewHost(lms.NewMemoryStore(), lms.Learner{ID: "learner-1", Name: "Ada"}, "course-1", nil, time.Second)
			s := New(scorm.NewWrapper(host))
			require.Equal(t, ResultApplied, s.Connect())
			require.Equal(t, scorm.Version2004, s.Snapshot().ScormVersion)

			require.Equal(t, ResultApplied, s.SetStatus(tt.status.String()))
			require.Equal(t, tt.status.String(), s.Snapshot().CompletionStatus)
			completion, _ := s.Get("cmi.completion_status")
			require.Equal(t, tt.completion, completion)
			success, _ := s.Get("cmi.success_status")
			require.Equal(t, tt.success, success)

			require.Equal(t, ResultApplied, s.Disconnect())
			attempt, err := host.LoadAttempt(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.completion, attempt.Data["cmi.completion_status"])
			require.Equal(t, tt.exit, attempt.Data["cmi.exit"])
		})
	}
}
