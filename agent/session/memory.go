package session

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/agentswarm/types"
)

// MemoryManager keeps sessions in memory.
type MemoryManager struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]types.Message
}

// NewMemoryManager creates an empty in-memory manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{sessions: make(map[string]map[string][]types.Message)}
}

func (m *MemoryManager) Load(_ context.Context, sessionID, agentID string) ([]types.Message, error) {
	if err := validateIDs(sessionID, agentID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sessions[sessionID][agentID]
	return append([]types.Message(nil), msgs...), nil
}

func (m *MemoryManager) Append(_ context.Context, sessionID, agentID string, msg types.Message) error {
	if err := validateIDs(sessionID, agentID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	agents, ok := m.sessions[sessionID]
	if !ok {
		agents = make(map[string][]types.Message)
		m.sessions[sessionID] = agents
	}
	agents[agentID] = append(agents[agentID], msg)
	return nil
}

func (m *MemoryManager) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryManager) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
