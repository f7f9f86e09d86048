package session

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

// SuspendData is the structured state content keeps between launches. It is
// stored as one JSON object in cmi.suspend_data.
type SuspendData map[string]any

func (d SuspendData) Clone() SuspendData {
	if d == nil {
		return SuspendData{}
	}
	return maps.Clone(d)
}

func (d SuspendData) Encode() (string, error) {
	if d == nil {
		d = SuspendData{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSuspendData parses the remote text. Empty text and JSON null decode to
// an empty mapping.
func DecodeSuspendData(raw string) (SuspendData, error) {
	if raw == "" {
		return SuspendData{}, nil
	}
	var data SuspendData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return SuspendData{}, err
	}
	if data == nil {
		data = SuspendData{}
	}
	return data, nil
}

// normalize returns value as it reads back after a round trip through JSON.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// suspendDataStore owns the materialized copy of cmi.suspend_data. Each write
// replaces the snapshot with a new map; snapshots are never mutated in place.
// Callers hold the session lock and check the connection first.
type suspendDataStore struct {
	api  scorm.API
	data SuspendData
}

func newSuspendDataStore(api scorm.API) *suspendDataStore {
	return &suspendDataStore{api: api, data: SuspendData{}}
}

// hydrate replaces the snapshot with the remote value. On malformed text the
// snapshot becomes empty and the parse error is returned.
func (st *suspendDataStore) hydrate() error {
	data, err := DecodeSuspendData(st.api.Get(scorm.SuspendDataField))
	st.data = data
	return err
}

// set merges key into a copy of the snapshot and writes the whole mapping
// without committing. The snapshot changes only when the remote write succeeds.
func (st *suspendDataStore) set(key string, value any) (Result, error) {
	if key == "" || value == nil {
		return ResultInvalidArgument, fmt.Errorf("suspend data key and value must be present")
	}
	if s, ok := value.(string); ok && s == "" {
		return ResultInvalidArgument, fmt.Errorf("suspend data value for %q is empty", key)
	}
	normalized, err := normalize(value)
	if err != nil {
		return ResultInvalidArgument, fmt.Errorf("suspend data value for %q is not serializable: %w", key, err)
	}

	merged := st.data.Clone()
	merged[key] = normalized
	raw, err := merged.Encode()
	if err != nil {
		return ResultInvalidArgument, err
	}
	if !st.api.Set(scorm.SuspendDataField, raw) {
		return ResultRejectedByRemote, fmt.Errorf("could not set the suspend data provided")
	}
	st.data = merged
	return ResultApplied, nil
}

// flush writes the current snapshot without committing.
func (st *suspendDataStore) flush() (Result, error) {
	raw, err := st.data.Encode()
	if err != nil {
		return ResultInvalidArgument, err
	}
	if !st.api.Set(scorm.SuspendDataField, raw) {
		return ResultRejectedByRemote, fmt.Errorf("could not flush the suspend data")
	}
	return ResultApplied, nil
}

func (st *suspendDataStore) get() SuspendData {
	return st.data.Clone()
}

func (st *suspendDataStore) reset() {
	st.data = SuspendData{}
}
