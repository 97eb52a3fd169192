package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

// maxBodyBytes caps an update request body.
const maxBodyBytes = 1 << 20

// UpdateRequest is the body of POST /v1/sketches/{name}.
type UpdateRequest struct {
	Key   string   `json:"key"`
	Count *int64   `json:"count,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// ListResponse is the body of GET /v1/sketches.
type ListResponse struct {
	Sketches []registry.Result `json:"sketches"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listSketches(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, ListResponse{Sketches: s.reg.Snapshot()})
}

func (s *Server) querySketch(rw http.ResponseWriter, hr *http.Request) {
	name := mux.Vars(hr)["name"]

	var key []byte
	if k := hr.URL.Query().Get("key"); k != "" {
		key = []byte(k)
	}

	res, err := s.reg.Query(name, key)
	if err != nil {
		s.fail(rw, hr, err)

		return
	}

	writeJSON(rw, http.StatusOK, res)
}

func (s *Server) updateSketch(rw http.ResponseWriter, hr *http.Request) {
	name := mux.Vars(hr)["name"]

	var req UpdateRequest

	dec := json.NewDecoder(io.LimitReader(hr.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid body: "+err.Error())

		return
	}

	rec := registry.KeyRecord(req.Key)
	if req.Count != nil {
		rec.Count = *req.Count
	}

	if req.Value != nil {
		rec.Value = *req.Value
		rec.HasValue = true
	}

	if err := s.reg.Apply(hr.Context(), name, rec); err != nil {
		s.fail(rw, hr, err)

		return
	}

	res, err := s.reg.Query(name, rec.Key)
	if err != nil {
		s.fail(rw, hr, err)

		return
	}

	writeJSON(rw, http.StatusOK, res)
}

func (s *Server) resetSketch(rw http.ResponseWriter, hr *http.Request) {
	if err := s.reg.Reset(mux.Vars(hr)["name"]); err != nil {
		s.fail(rw, hr, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(rw http.ResponseWriter, hr *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(hr.Context(), "request failed", "path", hr.URL.Path, "error", err)
	}

	writeError(rw, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownSketch):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrBadRecord), errors.Is(err, sketch.ErrInvalidIncrement):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(rw http.ResponseWriter, code int, msg string) {
	writeJSON(rw, code, ErrorResponse{Error: msg})
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	_ = json.NewEncoder(rw).Encode(v)
}
