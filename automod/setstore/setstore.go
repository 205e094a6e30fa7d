package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
)

// Named sets of strings, such as keyword lists referenced by rule conditions.
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	// Returns the members of the named set. A missing set returns an empty list.
	Members(ctx context.Context, name string) ([]string, error)
}

type MemSetStore struct {
	mu   sync.RWMutex
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

func (s *MemSetStore) Members(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.Sets[name]))
	for v := range s.Sets[name] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Replaces (or creates) the named set.
func (s *MemSetStore) Put(name string, vals []string) {
	m := make(map[string]bool, len(vals))
	for _, val := range vals {
		m[val] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sets[name] = m
}

// Loads sets from a JSON file containing an object mapping set names to lists of strings.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}

	for name, l := range sets {
		s.Put(name, l)
	}
	return nil
}
