package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/williammiras/dash/internal/models"
)

// MemoryDB keeps sessions in process memory. One mutex guards every read and write.
type MemoryDB struct {
	mu       sync.Mutex
	sessions map[string]models.ChatSession
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{sessions: make(map[string]models.ChatSession)}
}

func (m *MemoryDB) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Turns = append([]models.Turn(nil), s.Turns...)
	return &s, nil
}

func (m *MemoryDB) SaveSession(_ context.Context, session models.ChatSession) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	session.Turns = append([]models.Turn(nil), session.Turns...)
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryDB) AppendTurns(_ context.Context, id, model string, maxTurns int, turns ...models.Turn) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = models.ChatSession{ID: id}
	}
	s.Turns = append([]models.Turn(nil), s.Turns...)
	s.Append(maxTurns, turns...)
	s.Model = model
	s.UpdatedAt = time.Now().UTC()
	m.sessions[id] = s
	return nil
}

func (m *MemoryDB) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryDB) Close() error {
	return nil
}
