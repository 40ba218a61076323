package orchestrator

import (
	"context"
	"sync"

	"github.com/maastricht-university/interview-pipeline/clients"
	"github.com/maastricht-university/interview-pipeline/logging"
)

// Listener is a long-lived speech source. Start must return promptly and
// deliver from its own goroutine; Stop waits for delivery to end and may be
// called more than once.
type Listener interface {
	Start(ctx context.Context, deliver func(Utterance)) error
	Stop() error
}

// ASRListener transcribes a recorded answer through the ASR service and
// delivers every segment as a finalized utterance.
type ASRListener struct {
	http      *clients.HTTP
	url, path string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewASRListener(h *clients.HTTP, url, audioPath string) *ASRListener {
	return &ASRListener{http: h, url: url, path: audioPath, done: make(chan struct{})}
}

func (l *ASRListener) Start(ctx context.Context, deliver func(Utterance)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return nil
	}
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		log := logging.Component("listener").WithField("audio", l.path)
		asr, err := l.http.ASRFile(ctx, l.url, l.path)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("transcription failed, continuing without speech")
			}
			return
		}
		log.WithField("segments", len(asr.Segments)).Info("transcript received")
		for _, seg := range asr.Segments {
			if ctx.Err() != nil {
				return
			}
			deliver(Utterance{Start: seg.Start, End: seg.End, Text: seg.Text, Final: true})
		}
	}()
	return nil
}

// Done is closed once the transcript has been delivered or abandoned.
func (l *ASRListener) Done() <-chan struct{} { return l.done }

func (l *ASRListener) Stop() error {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-l.done
	return nil
}
