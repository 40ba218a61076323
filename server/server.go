// Package server exposes interview sessions to the browser: session control,
// frame and utterance ingestion, a live event stream and the results view.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-pipeline/config"
	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/logging"
	"github.com/maastricht-university/interview-pipeline/orchestrator"
	"github.com/maastricht-university/interview-pipeline/results"
)

const defaultMaxFrameBytes = 4 << 20

type Deps struct {
	Sessions *orchestrator.Manager
	Store    results.Store
	// Extractor answers /analyze; nil makes it 503.
	Extractor      extractor.Extractor
	SmileThreshold float64
}

type Server struct {
	cfg      config.Server
	deps     Deps
	router   *mux.Router
	handler  http.Handler
	srv      *http.Server
	upgrader websocket.Upgrader
	log      *logrus.Entry
	started  time.Time
}

func New(c config.Server, d Deps) *Server {
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = defaultMaxFrameBytes
	}
	if d.SmileThreshold <= 0 {
		d.SmileThreshold = extractor.DefaultSmileThreshold
	}
	origins := c.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		cfg:     c,
		deps:    d,
		router:  mux.NewRouter(),
		log:     logging.Component("server"),
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return originAllowed(origins, r.Header.Get("Origin")) },
	}
	s.routes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.srv = &http.Server{
		Addr:         c.Addr,
		Handler:      s.handler,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/start", s.startSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/end", s.endSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/restart", s.restartSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/media-error", s.mediaError).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/frames", s.pushFrame).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/utterances", s.pushUtterance).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/stream", s.stream).Methods(http.MethodGet)

	api.HandleFunc("/results/{id}", s.getResults).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)

	if s.cfg.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
}

// Handler is the full CORS-wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe blocks until Shutdown; a clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.Addr).Info("listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends every capturing session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.deps.Sessions.Shutdown(ctx)
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}
