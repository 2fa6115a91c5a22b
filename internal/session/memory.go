package session

import "sync"

// MemoryStore is an in-memory Store. State lives for the lifetime of
// the process; restarts reset every chat to defaults.
type MemoryStore struct {
	mu           sync.RWMutex
	models       map[string]string
	translations map[string]Translation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		models:       make(map[string]string),
		translations: make(map[string]Translation),
	}
}

func (s *MemoryStore) Model(chatID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.models[chatID]
}

func (s *MemoryStore) SetModel(chatID, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[chatID] = model
}

func (s *MemoryStore) Translation(chatID string) Translation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.translations[chatID]
}

func (s *MemoryStore) UpdateTranslation(chatID string, fn func(*Translation)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.translations[chatID]
	fn(&t)
	s.translations[chatID] = t
}
