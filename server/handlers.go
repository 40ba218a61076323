package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/media"
	"github.com/maastricht-university/interview-pipeline/orchestrator"
	"github.com/maastricht-university/interview-pipeline/results"
)

const endTimeout = 30 * time.Second

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{
		"status":   "ok",
		"sessions": s.deps.Sessions.Len(),
		"analysis": s.deps.Extractor != nil,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	sess, err := s.deps.Sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.deps.Sessions.Create()
	s.log.WithField("session_id", sess.ID()).Info("session created")
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: sess.Status()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeOK(w, sess.Status())
	}
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Start(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, sess.Status())
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	// persistence outlives the request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), endTimeout)
	defer cancel()
	rec, err := sess.End(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, newResultsView(rec))
}

func (s *Server) restartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), endTimeout)
	defer cancel()
	sess, err := s.deps.Sessions.Restart(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: sess.Status()})
}

type mediaErrorReq struct {
	Error string `json:"error"` // permission_denied | device_unavailable
}

// mediaError records that the browser could not open camera or microphone,
// so the following start reports the resource as unavailable.
func (s *Server) mediaError(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req mediaErrorReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	var cause error
	switch req.Error {
	case "permission_denied":
		cause = media.ErrPermissionDenied
	case "device_unavailable", "":
		cause = media.ErrDeviceUnavailable
	default:
		s.writeError(w, r, fmt.Errorf("%w: unknown media error %q", errBadRequest, req.Error))
		return
	}
	d, ok := sess.Media().(interface{ Deny(error) })
	if !ok {
		s.writeError(w, r, errNotMediaFed)
		return
	}
	d.Deny(cause)
	writeOK(w, sess.Status())
}

type imageReq struct {
	Image string `json:"image"` // data URL or bare base64
}

// decodeDataURL accepts "data:image/jpeg;base64,...." or plain base64.
func decodeDataURL(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: image must be a base64 data URL", errBadRequest)
		}
		s = payload
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: image: %v", errBadRequest, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty image", errBadRequest)
	}
	return b, nil
}

// readImage takes either a JSON {image} body or the raw image bytes.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxFrameBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req imageReq
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return decodeDataURL(req.Image)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty frame", errBadRequest)
	}
	return b, nil
}

func sinkOf(sess *orchestrator.Session) (media.Sink, error) {
	sink, ok := sess.Media().(media.Sink)
	if !ok {
		return nil, errNotMediaFed
	}
	return sink, nil
}

func (s *Server) pushFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sink, err := sinkOf(sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	frame, err := s.readImage(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sink.PushFrame(frame); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, APIResponse{Success: true})
}

func (s *Server) pushUtterance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var u orchestrator.Utterance
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	writeOK(w, map[string]bool{"accepted": sess.HandleUtterance(u)})
}

// resultsView is what the results page renders: the record plus the
// outcome text.
type resultsView struct {
	results.Record
	Message string `json:"message"`
}

func newResultsView(rec results.Record) resultsView {
	return resultsView{Record: rec, Message: rec.Decision.Message()}
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, newResultsView(rec))
}

// AnalyzeResult is the single-frame answer of /analyze.
type AnalyzeResult struct {
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	Smiling    bool   `json:"smiling"`
	Expression string `json:"expression"`
}

// analyze runs one frame through the server-side extractor. Remote
// credentials stay on the server.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if s.deps.Extractor == nil {
		s.writeError(w, r, errNoAnalysis)
		return
	}
	img, err := s.readImage(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Extractor.Analyze(r.Context(), img)
	if err != nil {
		if !errors.Is(err, extractor.ErrNoFace) {
			err = fmt.Errorf("%w: %w", errNoAnalysis, err)
		}
		s.writeError(w, r, err)
		return
	}
	o := extractor.Observe(a, s.deps.SmileThreshold, 0)
	writeOK(w, AnalyzeResult{Gender: o.Gender, Age: o.Age, Smiling: o.Smiling, Expression: o.Expression})
}
