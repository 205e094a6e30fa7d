package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemStore struct {
	mu        sync.Mutex
	workflows map[string]*Workflow
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		workflows: make(map[string]*Workflow),
	}
}

func copyWorkflow(wf *Workflow) *Workflow {
	c := *wf
	return &c
}

func (s *MemStore) Create(ctx context.Context, wf *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[wf.ID]; ok {
		return fmt.Errorf("workflow %s already exists", wf.ID)
	}
	s.workflows[wf.ID] = copyWorkflow(wf)
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return copyWorkflow(wf), nil
}

func (s *MemStore) List(ctx context.Context, filter ListFilter) ([]*Workflow, error) {
	s.mu.Lock()
	out := []*Workflow{}
	for _, wf := range s.workflows {
		if filter.Status != "" && wf.Status != filter.Status {
			continue
		}
		if filter.ContentID != "" && wf.ContentID != filter.ContentID {
			continue
		}
		if filter.RequesterID != "" && wf.RequesterID != filter.RequesterID {
			continue
		}
		if filter.AssigneeID != "" && (wf.AssigneeID == nil || *wf.AssigneeID != filter.AssigneeID) {
			continue
		}
		out = append(out, copyWorkflow(wf))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) UpdateStatus(ctx context.Context, id string, from Status, upd StatusUpdate) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if wf.Status != from {
		return nil, fmt.Errorf("%w: workflow %s is %s, not %s", ErrInvalidTransition, id, wf.Status, from)
	}
	upd.apply(wf)
	return copyWorkflow(wf), nil
}

func (s *MemStore) SetAssignee(ctx context.Context, id string, assigneeID string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if wf.Status != StatusPending {
		return nil, fmt.Errorf("%w: can only assign pending workflows (%s is %s)", ErrInvalidTransition, id, wf.Status)
	}
	wf.AssigneeID = &assigneeID
	return copyWorkflow(wf), nil
}
