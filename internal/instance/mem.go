package instance

import (
	"sort"
	"sync"
)

// MemStore is an in-process Store used by one-shot CLI runs and tests.
type MemStore struct {
	mu      sync.RWMutex
	configs map[ID]Config
}

func NewMemStore() *MemStore {
	return &MemStore{configs: make(map[ID]Config)}
}

func (s *MemStore) Get(id ID) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return DefaultConfig(), nil
	}
	return cfg.fillDefaults(), nil
}

func (s *MemStore) Put(id ID, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[id] = cfg
	return nil
}

func (s *MemStore) Delete(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, id)
	return nil
}

func (s *MemStore) IDs() ([]ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ID, 0, len(s.configs))
	for id := range s.configs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
