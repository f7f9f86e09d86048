package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/session"
)

// sessionResponse is the body of every /session endpoint. NotConnected and
// RejectedByRemote are reported here with a 200, never as HTTP errors.
type sessionResponse struct {
	Result   session.Result   `json:"result"`
	Value    any              `json:"value,omitempty"`
	Snapshot session.Snapshot `json:"snapshot"`
}

type connectRequest struct {
	Version string `json:"version"`
	Debug   *bool  `json:"debug"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type valueRequest struct {
	Value *string `json:"value"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	State     string `json:"state"`
}

type SessionHandler struct {
	session *session.Session
}

func NewSessionHandler(s *session.Session) *SessionHandler {
	return &SessionHandler{session: s}
}

func (h *SessionHandler) respond(w http.ResponseWriter, result session.Result, value any) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Result:   result,
		Value:    value,
		Snapshot: h.session.Snapshot(),
	})
}

// Health handles GET /healthz
func (h *SessionHandler) Health(w http.ResponseWriter, _ *http.Request) {
	state := h.session.State()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Connected: state == session.StateConnected,
		State:     state.String(),
	})
}

// Snapshot handles GET /session
func (h *SessionHandler) Snapshot(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, session.ResultApplied, nil)
}

// Connect handles POST /session/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var opts []session.ConnectOption
	if req.Version != "" {
		opts = append(opts, session.WithVersion(scorm.Version(req.Version)))
	}
	if req.Debug != nil {
		opts = append(opts, session.WithDebug(*req.Debug))
	}
	h.respond(w, h.session.Connect(opts...), nil)
}

// Disconnect handles POST /session/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.session.Disconnect(), nil)
}

// GetSuspendData handles GET /session/suspend-data
func (h *SessionHandler) GetSuspendData(w http.ResponseWriter, _ *http.Request) {
	data, ok := h.session.GetSuspendData()
	if !ok {
		h.respond(w, session.ResultNotConnected, nil)
		return
	}
	h.respond(w, session.ResultApplied, data)
}

// SetSuspendData handles PUT /session/suspend-data/{key}. The body is the JSON
// value to store.
func (h *SessionHandler) SetSuspendData(w http.ResponseWriter, r *http.Request) {
	var value any
	if err := decodeJSON(r, &value, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.respond(w, h.session.SetSuspendData(chi.URLParam(r, "key"), value), nil)
}

// SetStatus handles PUT /session/status
func (h *SessionHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.respond(w, h.session.SetStatus(req.Status), nil)
}

// GetValue handles GET /session/values/{field}
func (h *SessionHandler) GetValue(w http.ResponseWriter, r *http.Request) {
	value, ok := h.session.Get(chi.URLParam(r, "field"))
	if !ok {
		h.respond(w, session.ResultNotConnected, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Result:   session.ResultApplied,
		Value:    &value,
		Snapshot: h.session.Snapshot(),
	})
}

// SetValue handles PUT /session/values/{field}
func (h *SessionHandler) SetValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	h.respond(w, h.session.Set(chi.URLParam(r, "field"), *req.Value), nil)
}
