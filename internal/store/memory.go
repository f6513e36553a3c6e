package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Shofol/CritVid-sub002/internal/critique"
)

// MemoryStore keeps sessions in a map. Sessions are deep-copied on the way in
// and out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*critique.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*critique.Session)}
}

func (m *MemoryStore) Save(ctx context.Context, s *critique.Session) error {
	if err := checkSession(s); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ContentID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, contentID string) (*critique.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[contentID]
	if !ok {
		return nil, notFound(contentID)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[contentID]; !ok {
		return notFound(contentID)
	}
	delete(m.sessions, contentID)
	return nil
}

// List returns summaries newest first.
func (m *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, summarize(s))
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortNewestFirst(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ContentID < out[j].ContentID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}
