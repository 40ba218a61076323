package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var frameExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirSource replays the image files of a directory in name order, one per
// capture. It stands in for the camera when a recorded interview is rerun.
type DirSource struct {
	Dir string
}

func NewDirSource(dir string) *DirSource { return &DirSource{Dir: dir} }

func (d *DirSource) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Dir)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Dir)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(d.Dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", ErrDeviceUnavailable, d.Dir)
	}
	sort.Strings(files)
	return &DirStream{files: files, drained: make(chan struct{})}, nil
}

type DirStream struct {
	mu        sync.Mutex
	files     []string
	next      int
	closed    bool
	drained   chan struct{}
	drainOnce sync.Once
}

// Frame reads the next file. After the last one it returns io.EOF.
func (s *DirStream) Frame() ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.next >= len(s.files) {
		s.mu.Unlock()
		s.drain()
		return nil, io.EOF
	}
	path := s.files[s.next]
	s.next++
	last := s.next == len(s.files)
	s.mu.Unlock()

	if last {
		defer s.drain()
	}
	return os.ReadFile(path)
}

// Drained is closed once every frame has been handed out or the stream closed.
func (s *DirStream) Drained() <-chan struct{} { return s.drained }

func (s *DirStream) Len() int { return len(s.files) }

func (s *DirStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.drain()
	return nil
}

func (s *DirStream) drain() { s.drainOnce.Do(func() { close(s.drained) }) }
