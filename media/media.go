// Package media hands captured frames to the sampler. Real camera access
// happens in the browser; here a stream is either fed by pushes from the
// browser or replayed from disk.
package media

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPermissionDenied  = errors.New("media: permission denied")
	ErrDeviceUnavailable = errors.New("media: device unavailable")
	ErrNoFrame           = errors.New("media: no frame captured yet")
	ErrClosed            = errors.New("media: stream closed")
)

type Source interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is a live capture. Close may be called any number of times.
type Stream interface {
	// Frame returns the current frame.
	Frame() ([]byte, error)
	Close() error
}

// Sink accepts frames pushed from outside, e.g. the browser.
type Sink interface {
	PushFrame(frame []byte) error
}

// PushSource keeps the latest pushed frame, the offscreen buffer the sampler
// reads from. A denied or missing device is reported by the browser through
// Deny before the session starts.
type PushSource struct {
	mu     sync.Mutex
	frame  []byte
	denied error
	stream *pushStream
}

func NewPushSource() *PushSource { return &PushSource{} }

// Deny records that the browser could not open the camera; the next Acquire
// fails with err (ErrPermissionDenied or ErrDeviceUnavailable).
func (p *PushSource) Deny(err error) {
	p.mu.Lock()
	p.denied = err
	p.mu.Unlock()
}

func (p *PushSource) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied != nil {
		return nil, p.denied
	}
	if p.stream != nil && !p.stream.closed {
		return nil, ErrDeviceUnavailable
	}
	p.frame = nil
	p.stream = &pushStream{src: p}
	return p.stream, nil
}

// PushFrame replaces the buffered frame. Frames pushed with no open stream
// are rejected.
func (p *PushSource) PushFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.stream.closed {
		return ErrClosed
	}
	p.frame = append(p.frame[:0], frame...)
	return nil
}

type pushStream struct {
	src    *PushSource
	closed bool // guarded by src.mu
}

func (s *pushStream) Frame() ([]byte, error) {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(s.src.frame) == 0 {
		return nil, ErrNoFrame
	}
	out := make([]byte, len(s.src.frame))
	copy(out, s.src.frame)
	return out, nil
}

func (s *pushStream) Close() error {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.src.frame = nil
	return nil
}
