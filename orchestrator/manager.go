package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Factory builds the collaborators for a new session.
type Factory func(id string) Deps

// Manager keeps the live sessions of the server, keyed by id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  Factory
}

func NewManager(f Factory) *Manager {
	return &Manager{sessions: map[string]*Session{}, factory: f}
}

// Create registers a fresh idle session.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := NewSession(id, m.factory(id))
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Restart ends id if it is still capturing, forgets it and returns a new
// idle session with an empty log.
func (m *Manager) Restart(ctx context.Context, id string) (*Session, error) {
	old, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if old.State() == StateCapturing {
		if _, err := old.End(ctx); err != nil {
			old.log.WithError(err).Warn("ending session before restart")
		}
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return m.Create(), nil
}

// Shutdown ends every capturing session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()
	for _, s := range live {
		if s.State() == StateCapturing {
			if _, err := s.End(ctx); err != nil {
				s.log.WithError(err).Warn("ending session on shutdown")
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
