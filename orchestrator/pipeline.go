package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/maastricht-university/interview-pipeline/clients"
	cfg "github.com/maastricht-university/interview-pipeline/config"
	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/logging"
	"github.com/maastricht-university/interview-pipeline/media"
	"github.com/maastricht-university/interview-pipeline/results"
	"github.com/maastricht-university/interview-pipeline/sentiment"
)

// Pipeline replays a recorded interview (a directory of frames plus an
// optional audio file) through one session.
type Pipeline struct {
	cfg   *cfg.Root
	http  *clients.HTTP
	store results.Store
	ex    extractor.Extractor
}

func NewPipeline(c *cfg.Root, store results.Store) *Pipeline {
	return &Pipeline{cfg: c, http: clients.NewHTTPWithTimeout(c.Extractor.Timeout), store: store}
}

// WithExtractor skips backend loading and uses ex.
func (p *Pipeline) WithExtractor(ex extractor.Extractor) *Pipeline {
	p.ex = ex
	return p
}

func sessionID(t time.Time) string { return "session_" + t.Format("20060102-150405") }

func (p *Pipeline) Run(ctx context.Context, framesDir, audioPath string) (results.Record, error) {
	log := logging.Component("pipeline")

	ex := p.ex
	if ex == nil {
		loaded, err := extractor.Load(ctx, p.cfg.Extractor, p.http)
		switch {
		case errors.Is(err, extractor.ErrLoadFailure):
			// degrade: no observations, summary falls back to defaults
		case err != nil:
			return results.Record{}, err
		default:
			ex = loaded
		}
	}

	var listener *ASRListener
	deps := Deps{
		Source:         media.NewDirSource(framesDir),
		Extractor:      ex,
		Classifier:     sentiment.New(p.cfg.Speech.Keywords.Positive, p.cfg.Speech.Keywords.Negative),
		Store:          p.store,
		Interval:       p.cfg.Sampler.Interval,
		SmileThreshold: p.cfg.Extractor.SmileThreshold,
	}
	if audioPath != "" {
		if p.cfg.Speech.ASR.URL == "" {
			log.Warn("audio given but speech.asr.url is empty, skipping transcript")
		} else {
			listener = NewASRListener(p.http, p.cfg.Speech.ASR.URL, audioPath)
			deps.Listener = listener
		}
	}

	s := NewSession(sessionID(time.Now()), deps)
	if err := s.Start(ctx); err != nil {
		return results.Record{}, err
	}

	// without analysis nothing reads frames, so there is nothing to drain
	if s.Analysis() {
		select {
		case <-s.Drained():
		case <-ctx.Done():
		}
	}
	if listener != nil {
		select {
		case <-listener.Done():
		case <-ctx.Done():
		}
	}

	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	rec, err := s.End(endCtx)
	if err != nil {
		return rec, err
	}
	log.WithField("session_id", rec.SessionID).WithField("outcome", rec.Decision.Outcome).Info("replay finished")
	return rec, nil
}
