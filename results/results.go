// Package results persists the end-of-session summary and decision so the
// results view can read them back.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maastricht-university/interview-pipeline/aggregate"
	"github.com/maastricht-university/interview-pipeline/config"
	"github.com/maastricht-university/interview-pipeline/decision"
)

// FormatVersion is bumped whenever Record changes shape.
const FormatVersion = 1

var (
	ErrNotFound           = errors.New("results: not found")
	ErrUnsupportedVersion = errors.New("results: unsupported format version")
)

type Record struct {
	Version   int               `json:"version"`
	SessionID string            `json:"session_id"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Summary   aggregate.Summary `json:"summary"`
	Decision  decision.Decision `json:"decision"`
}

type Store interface {
	Save(ctx context.Context, r Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
	Close() error
}

// Open builds the store named by c.Backend.
func Open(c config.Results) (Store, error) {
	switch c.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(c.Dir)
	case "sqlite":
		return OpenSQLite(c.DSN)
	}
	return nil, fmt.Errorf("results: unknown backend %q", c.Backend)
}

func encode(r Record) ([]byte, error) {
	if r.Version == 0 {
		r.Version = FormatVersion
	}
	return json.Marshal(r)
}

func decode(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("results decode: %w", err)
	}
	if r.Version != FormatVersion {
		return Record{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.Version)
	}
	return r, nil
}

// MemoryStore is a process-local key-value slot.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string][]byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{recs: map[string][]byte{}} }

func (m *MemoryStore) Save(_ context.Context, r Record) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.recs[r.SessionID] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	b, ok := m.recs[id]
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return decode(b)
}

func (m *MemoryStore) Close() error { return nil }
