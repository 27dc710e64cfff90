package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"profile-agent/internal/domain"
)

// MemStore is an in-memory session store with the same contract as the
// DynamoDB Client. It backs the local CLI driver and tests. Histories are
// stored serialized, so the round-trip behaviour matches the real store.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]string
	profiles map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]string),
		profiles: make(map[string]string),
	}
}

func (m *MemStore) GetSession(_ context.Context, sessionID string) (*domain.History, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, errors.New("repository: GetSession: session ID is required")
	}
	m.mu.Lock()
	raw, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var history domain.History
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, false, fmt.Errorf("repository: GetSession decode history: %w", err)
	}
	return &history, true, nil
}

func (m *MemStore) SaveSession(_ context.Context, sessionID string, history *domain.History) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: SaveSession: session ID is required")
	}
	if history == nil {
		return errors.New("repository: SaveSession: history is required")
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("repository: SaveSession encode history: %w", err)
	}
	m.mu.Lock()
	m.sessions[sessionID] = string(raw)
	m.mu.Unlock()
	return nil
}

func (m *MemStore) FinalizeSession(_ context.Context, sessionID string, record *domain.ProfileRecord) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: FinalizeSession: session ID is required")
	}
	if record == nil {
		return errors.New("repository: FinalizeSession: record is required")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("repository: FinalizeSession encode record: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[sessionID]; exists {
		return fmt.Errorf("repository: FinalizeSession: session %s already finalized", sessionID)
	}
	m.profiles[sessionID] = string(raw)
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemStore) GetProfile(_ context.Context, sessionID string) (*domain.ProfileRecord, bool, error) {
	m.mu.Lock()
	raw, ok := m.profiles[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var record domain.ProfileRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, false, fmt.Errorf("repository: GetProfile decode record: %w", err)
	}
	return &record, true, nil
}
