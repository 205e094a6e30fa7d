package flagstore

import (
	"context"
	"sort"
	"sync"
)

type MemFlagStore struct {
	mu   sync.RWMutex
	Data map[string][]string
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		Data: make(map[string][]string),
	}
}

func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Data[key]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := append(s.Data[key], flags...)
	s.Data[key] = dedupeStrings(v)
	return nil
}

func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(flags))
	for _, f := range flags {
		drop[f] = true
	}
	out := []string{}
	for _, f := range s.Data[key] {
		if !drop[f] {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		delete(s.Data, key)
		return nil
	}
	s.Data[key] = out
	return nil
}

func (s *MemFlagStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.Data))
	for k, v := range s.Data {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
