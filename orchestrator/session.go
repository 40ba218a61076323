package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-pipeline/aggregate"
	"github.com/maastricht-university/interview-pipeline/decision"
	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/logging"
	"github.com/maastricht-university/interview-pipeline/media"
	"github.com/maastricht-university/interview-pipeline/observation"
	"github.com/maastricht-university/interview-pipeline/results"
	"github.com/maastricht-university/interview-pipeline/sentiment"
)

// Deps are the collaborators of one session. Extractor and Listener may be
// nil: without an extractor the session runs in no-analysis mode.
type Deps struct {
	Source         media.Source
	Extractor      extractor.Extractor
	Listener       Listener
	Classifier     *sentiment.Classifier
	Store          results.Store
	Interval       time.Duration
	SmileThreshold float64
	Now            func() time.Time
}

// Session is one interview, idle → capturing → ended. It owns its
// observation log; nothing else writes to it.
type Session struct {
	id     string
	deps   Deps
	log    *logrus.Entry
	obs    *observation.Log
	events *hub

	mu      sync.Mutex
	state   State
	ending  bool
	sealed  bool // log frozen for the summary; no more input
	endDone chan struct{}
	cancel  context.CancelFunc
	stream  media.Stream
	sampler *Sampler
	started time.Time
	ended   time.Time
	record  results.Record
	endErr  error
}

func NewSession(id string, d Deps) *Session {
	if d.Classifier == nil {
		d.Classifier = sentiment.New(nil, nil)
	}
	if d.Store == nil {
		d.Store = results.NewMemoryStore()
	}
	if d.Interval <= 0 {
		d.Interval = 500 * time.Millisecond
	}
	if d.SmileThreshold <= 0 {
		d.SmileThreshold = extractor.DefaultSmileThreshold
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Session{
		id:      id,
		deps:    d,
		log:     logging.Component("session").WithField("session_id", id),
		obs:     observation.NewLog(),
		events:  newHub(),
		state:   StateIdle,
		endDone: make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Media is the source frames come from; browser-fed sources also satisfy
// media.Sink.
func (s *Session) Media() media.Source { return s.deps.Source }

// Analysis reports whether frames are being analysed.
func (s *Session) Analysis() bool { return s.deps.Extractor != nil }

// Start acquires the media stream and begins sampling. A failed acquisition
// wraps ErrResourceUnavailable and leaves the session idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: cannot start a %s session", ErrInvalidState, s.state)
	}

	st, err := s.deps.Source.Acquire(ctx)
	if err != nil {
		s.log.WithError(err).Error("media acquisition failed")
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stream = st
	s.obs.Reset()
	s.started = s.deps.Now()
	s.state = StateCapturing

	if s.deps.Extractor != nil {
		s.sampler = NewSampler(s.deps.Interval, st.Frame, s.deps.Extractor, s.onAttributes)
		s.sampler.now = s.deps.Now
		s.sampler.Start(runCtx)
	} else {
		s.log.Warn("no extractor loaded, session runs without face analysis")
	}
	if s.deps.Listener != nil {
		if err := s.deps.Listener.Start(runCtx, s.deliver); err != nil {
			s.log.WithError(err).Warn("speech listener failed to start")
		}
	}
	s.log.WithField("interval", s.deps.Interval).Info("session started")
	return nil
}

func (s *Session) offset(at time.Time) int {
	d := at.Sub(s.started)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

func (s *Session) onAttributes(a extractor.Attributes, at time.Time) {
	s.mu.Lock()
	if !s.accepting() {
		s.mu.Unlock()
		return
	}
	o := extractor.Observe(a, s.deps.SmileThreshold, s.offset(at))
	s.obs.Append(o)
	s.mu.Unlock()
	s.events.publish(Event{Type: EventObservation, SessionID: s.id, Observation: &o})
}

// accepting reports whether input may still enter the log. Callers hold s.mu.
func (s *Session) accepting() bool { return s.state == StateCapturing && !s.sealed }

func (s *Session) deliver(u Utterance) { s.HandleUtterance(u) }

// HandleUtterance classifies a finalized utterance and appends it to the log.
// Interim results, blank text and utterances outside capturing, including
// those arriving while End is summarizing, are ignored.
func (s *Session) HandleUtterance(u Utterance) bool {
	if !u.Final || strings.TrimSpace(u.Text) == "" {
		return false
	}
	s.mu.Lock()
	if !s.accepting() {
		s.mu.Unlock()
		return false
	}
	off := s.offset(s.deps.Now())
	if u.Start > 0 {
		off = int(u.Start)
	}
	o := observation.Observation{
		Source:    observation.SourceSpeech,
		Sentiment: s.deps.Classifier.Classify(u.Text),
		Text:      u.Text,
		Offset:    off,
	}
	s.obs.Append(o)
	s.mu.Unlock()
	s.events.publish(Event{Type: EventObservation, SessionID: s.id, Observation: &o})
	return true
}

// End stops capture, releases the stream, summarizes, decides and persists.
// Calling it again returns the same record without releasing anything twice.
func (s *Session) End(ctx context.Context) (results.Record, error) {
	s.mu.Lock()
	switch {
	case s.state == StateIdle:
		s.mu.Unlock()
		return results.Record{}, fmt.Errorf("%w: session was never started", ErrInvalidState)
	case s.state == StateEnded:
		rec, err := s.record, s.endErr
		s.mu.Unlock()
		return rec, err
	case s.ending:
		done := s.endDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return results.Record{}, ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.record, s.endErr
	}
	s.ending = true
	sampler, stream, cancel := s.sampler, s.stream, s.cancel
	s.mu.Unlock()

	// the sampler and listener call back into the session, so stop them
	// without holding the lock
	if sampler != nil {
		sampler.Stop()
	}
	if s.deps.Listener != nil {
		if err := s.deps.Listener.Stop(); err != nil {
			s.log.WithError(err).Warn("speech listener stop failed")
		}
	}
	cancel()
	if err := stream.Close(); err != nil {
		s.log.WithError(err).Warn("media release failed")
	}

	s.mu.Lock()
	s.sealed = true
	s.ended = s.deps.Now()
	summary := aggregate.Summarize(s.obs.Snapshot())
	rec := results.Record{
		Version:   results.FormatVersion,
		SessionID: s.id,
		StartedAt: s.started.UTC(),
		EndedAt:   s.ended.UTC(),
		Summary:   summary,
		Decision:  decision.Decide(summary),
	}
	s.mu.Unlock()

	err := s.deps.Store.Save(ctx, rec)
	if err != nil {
		err = fmt.Errorf("persist results: %w", err)
		s.log.WithError(err).Error("results not persisted")
	}

	s.mu.Lock()
	s.record, s.endErr = rec, err
	s.state = StateEnded
	s.ending = false
	close(s.endDone)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"outcome":      rec.Decision.Outcome,
		"frames":       summary.FrameCount,
		"utterances":   summary.UtteranceCount,
		"smile_pct":    summary.SmilePercent,
		"negative_pct": summary.NegativeEmotionPercent,
	}).Info("session ended")
	s.events.close(Event{Type: EventEnded, SessionID: s.id, Record: &rec})
	return rec, err
}

// Elapsed is the time spent capturing so far, frozen once ended.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed()
}

func (s *Session) elapsed() time.Duration {
	switch s.state {
	case StateCapturing:
		return s.deps.Now().Sub(s.started)
	case StateEnded:
		return s.ended.Sub(s.started)
	}
	return 0
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.elapsed()
	st := Status{
		ID:             s.id,
		State:          s.state,
		Elapsed:        FormatElapsed(d),
		ElapsedSeconds: int(d / time.Second),
		Observations:   s.obs.Len(),
		Analysis:       s.deps.Extractor != nil,
	}
	if s.state != StateIdle {
		t := s.started.UTC()
		st.StartedAt = &t
	}
	return st
}

// Observations returns the log in arrival order.
func (s *Session) Observations() []observation.Observation { return s.obs.Snapshot() }

// SamplerStats is zero when no sampler ran.
func (s *Session) SamplerStats() SamplerStats {
	s.mu.Lock()
	sp := s.sampler
	s.mu.Unlock()
	if sp == nil {
		return SamplerStats{}
	}
	return sp.Stats()
}

// Subscribe streams observation events and a final ended event. The channel
// closes when the session ends or cancel is called.
func (s *Session) Subscribe() (<-chan Event, func()) { return s.events.subscribe() }

// Drained is closed when a replayed stream has handed out its last frame.
// It is nil for live streams.
func (s *Session) Drained() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.stream.(interface{ Drained() <-chan struct{} }); ok {
		return d.Drained()
	}
	return nil
}
