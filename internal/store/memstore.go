package store

import (
	"sort"
	"sync"
)

// MemStore implements Store in memory. It is the default when no database
// path is configured; contents vanish with the process.
type MemStore struct {
	mu   sync.RWMutex
	recs map[string]*Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{recs: make(map[string]*Record)}
}

func (s *MemStore) SaveInvestigation(rec *Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = nowUTC()
	}
	cp := *rec
	s.mu.Lock()
	s.recs[rec.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemStore) GetInvestigation(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) ListInvestigations(limit int) ([]*Record, error) {
	s.mu.RLock()
	out := make([]*Record, 0, len(s.recs))
	for _, rec := range s.recs {
		cp := *rec
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	s.recs = make(map[string]*Record)
	s.mu.Unlock()
	return nil
}
