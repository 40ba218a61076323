package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/media"
	"github.com/maastricht-university/interview-pipeline/orchestrator"
	"github.com/maastricht-university/interview-pipeline/results"
)

// APIResponse wraps every JSON answer.
type APIResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

var (
	errBadRequest  = errors.New("bad request")
	errNoAnalysis  = errors.New("face analysis unavailable")
	errNotMediaFed = errors.New("session does not accept pushed frames")
)

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	resp.Timestamp = time.Now().UnixMilli()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// statusOf maps domain errors onto HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, orchestrator.ErrSessionNotFound), errors.Is(err, results.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, orchestrator.ErrInvalidState), errors.Is(err, media.ErrClosed), errors.Is(err, errNotMediaFed):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, orchestrator.ErrResourceUnavailable), errors.Is(err, errNoAnalysis):
		return http.StatusServiceUnavailable, "resource_unavailable"
	case errors.Is(err, extractor.ErrNoFace):
		return http.StatusUnprocessableEntity, "no_face"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, APIResponse{Success: false, Message: err.Error(), Code: code})
}
