package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/logging"
	"github.com/maastricht-university/interview-pipeline/media"
)

// SamplerStats counts what happened to each tick.
type SamplerStats struct {
	Ticks   int64 `json:"ticks"`
	Skipped int64 `json:"skipped"` // previous extraction still in flight
	Dropped int64 `json:"dropped"` // capture or extraction failed
	Emitted int64 `json:"emitted"`
}

// Sampler captures a frame on every tick and runs the extractor on it. At
// most one extraction is in flight; ticks that find one running are skipped.
type Sampler struct {
	interval time.Duration
	capture  func() ([]byte, error)
	ex       extractor.Extractor
	emit     func(a extractor.Attributes, capturedAt time.Time)
	now      func() time.Time
	log      *logrus.Entry

	inFlight atomic.Bool
	ticks    atomic.Int64
	skipped  atomic.Int64
	dropped  atomic.Int64
	emitted  atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
	work     sync.WaitGroup
	stopped  bool
}

func NewSampler(interval time.Duration, capture func() ([]byte, error), ex extractor.Extractor,
	emit func(extractor.Attributes, time.Time)) *Sampler {
	return &Sampler{
		interval: interval,
		capture:  capture,
		ex:       ex,
		emit:     emit,
		now:      time.Now,
		log:      logging.Component("sampler"),
	}
}

// Start runs the tick loop until ctx is done or Stop is called. Starting
// twice, or after Stop, does nothing. Extractions run under ctx itself, so
// Stop lets the in-flight one finish.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	go s.loop(loopCtx, ctx)
}

// Stop ends the tick loop and waits for the in-flight extraction. Safe to
// call more than once.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.work.Wait()
}

func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Ticks:   s.ticks.Load(),
		Skipped: s.skipped.Load(),
		Dropped: s.dropped.Load(),
		Emitted: s.emitted.Load(),
	}
}

func (s *Sampler) loop(ctx, workCtx context.Context) {
	defer close(s.loopDone)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(workCtx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	s.ticks.Add(1)
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return
	}
	s.work.Add(1)
	go func() {
		defer s.work.Done()
		defer s.inFlight.Store(false)
		s.sample(ctx)
	}()
}

func (s *Sampler) sample(ctx context.Context) {
	at := s.now()
	frame, err := s.capture()
	if err != nil {
		s.dropped.Add(1)
		if !errors.Is(err, media.ErrNoFrame) && !errors.Is(err, io.EOF) {
			s.log.WithError(err).Warn("frame capture failed")
		}
		return
	}

	attrs, err := s.ex.Analyze(ctx, frame)
	switch {
	case errors.Is(err, extractor.ErrNoFace):
		s.dropped.Add(1)
		s.log.Debug("no face in frame")
		return
	case err != nil:
		s.dropped.Add(1)
		if ctx.Err() == nil {
			s.log.WithError(err).Warn("extraction failed, tick dropped")
		}
		return
	}
	s.emitted.Add(1)
	s.emit(attrs, at)
}
