package archive

import (
	"context"
	"errors"
	"sync"

	"github.com/callcoach/backend/internal/models"
)

var ErrNotFound = errors.New("call session not found")

// Archive stores finished call sessions. Sessions are immutable once saved.
type Archive interface {
	Save(ctx context.Context, session models.CallSession) error
	Get(ctx context.Context, callID string) (models.CallSession, error)
	Latest(ctx context.Context) (models.CallSession, error)
	Ping(ctx context.Context) error
}

type Memory struct {
	mu       sync.RWMutex
	sessions map[string]models.CallSession
}

func NewMemory() *Memory {
	return &Memory{sessions: map[string]models.CallSession{}}
}

func (m *Memory) Save(_ context.Context, session models.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.CallID]; exists {
		return nil
	}
	m.sessions[session.CallID] = session.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, callID string) (models.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[callID]
	if !ok {
		return models.CallSession{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Latest(_ context.Context) (models.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		latest models.CallSession
		found  bool
	)
	for _, s := range m.sessions {
		if !found || s.EndTime.After(latest.EndTime) {
			latest = s
			found = true
		}
	}
	if !found {
		return models.CallSession{}, ErrNotFound
	}
	return latest.Clone(), nil
}

func (m *Memory) Ping(context.Context) error { return nil }
