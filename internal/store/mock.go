package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory test double for the Store interface.
type MockStore struct {
	mu sync.Mutex

	Counter  int64
	Projects map[int64]*Project
	Messages []ChatMessage

	CounterErr error
	InsertErr  error
	GetErr     error
	MessageErr error
	PingErr    error
	CloseErr   error

	Closed bool
}

func (m *MockStore) NextProjectID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CounterErr != nil {
		return 0, m.CounterErr
	}
	m.Counter++
	return m.Counter, nil
}

func (m *MockStore) InsertProject(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if m.Projects == nil {
		m.Projects = make(map[int64]*Project)
	}
	if _, ok := m.Projects[p.ID]; ok {
		return fmt.Errorf("duplicate project %d", p.ID)
	}
	cp := *p
	m.Projects[p.ID] = &cp
	return nil
}

func (m *MockStore) GetProject(_ context.Context, id int64) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.Projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) TouchProject(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Projects[id]
	if !ok {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	p.LastAccessed = at
	return nil
}

func (m *MockStore) InsertChatMessage(_ context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MessageErr != nil {
		return m.MessageErr
	}
	m.Messages = append(m.Messages, *msg)
	return nil
}

func (m *MockStore) ListChatMessages(_ context.Context, chatID string) ([]ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := []ChatMessage{}
	for _, msg := range m.Messages {
		if msg.ChatID == chatID {
			msgs = append(msgs, msg)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (m *MockStore) Ping(_ context.Context) error {
	return m.PingErr
}

func (m *MockStore) Close(_ context.Context) error {
	m.Closed = true
	return m.CloseErr
}
