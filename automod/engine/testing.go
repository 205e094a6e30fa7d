package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/socialdesk/moddesk/automod/audit"
	"github.com/socialdesk/moddesk/automod/cachestore"
	"github.com/socialdesk/moddesk/automod/countstore"
	"github.com/socialdesk/moddesk/automod/flagstore"
	"github.com/socialdesk/moddesk/automod/setstore"
)

// In-memory ContentStore. Intentionally exported, for use in tests of other packages.
type MemContentStore struct {
	mu    sync.Mutex
	Items map[string]*ContentItem
	// content ID to removal reason
	Removed map[string]string
	Deltas  map[string][]ContentDelta
	// if set, returned from RemoveContent
	RemoveErr error
}

func NewMemContentStore() *MemContentStore {
	return &MemContentStore{
		Items:   make(map[string]*ContentItem),
		Removed: make(map[string]string),
		Deltas:  make(map[string][]ContentDelta),
	}
}

func (s *MemContentStore) Put(item *ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items[item.ID] = item
}

func (s *MemContentStore) GetContentItem(ctx context.Context, id string) (*ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.Items[id]
	if !ok {
		return nil, fmt.Errorf("content item %s: %w", id, ErrNotFound)
	}
	return item, nil
}

func (s *MemContentStore) ApplyDelta(ctx context.Context, id string, delta ContentDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.Items[id]
	if !ok {
		return fmt.Errorf("content item %s: %w", id, ErrNotFound)
	}
	if delta.Content != nil {
		item.Body = *delta.Content
	}
	s.Deltas[id] = append(s.Deltas[id], delta)
	return nil
}

func (s *MemContentStore) RemoveContent(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	if _, ok := s.Items[id]; !ok {
		return fmt.Errorf("content item %s: %w", id, ErrNotFound)
	}
	s.Removed[id] = reason
	return nil
}

type Ban struct {
	Reason   string
	Duration time.Duration
}

// In-memory UserStore. Intentionally exported, for use in tests of other packages.
type MemUserStore struct {
	mu    sync.Mutex
	Roles map[string][]string
	Bans  map[string]Ban
	// number of GetUserRoles calls, for cache tests
	RoleLookups int
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{
		Roles: make(map[string][]string),
		Bans:  make(map[string]Ban),
	}
}

func (s *MemUserStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RoleLookups++
	roles, ok := s.Roles[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return slices.Clone(roles), nil
}

func (s *MemUserStore) BanUser(ctx context.Context, userID string, reason string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bans[userID] = Ban{Reason: reason, Duration: duration}
	return nil
}

type Notification struct {
	Target  string
	Message string
}

// Notifier which just keeps everything it was asked to send.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Notification
	// if set, returned from Notify (and nothing is recorded)
	Err error
}

func (n *RecordingNotifier) Notify(ctx context.Context, target, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, Notification{Target: target, Message: message})
	return nil
}

// Engine wired entirely to in-memory stores, with a single "spam" keyword rule. The concrete stores can be reached by type assertion on the engine fields.
func EngineTestFixture() Engine {
	rules := StaticRules{
		{
			ID: "rule-spam",
			RuleDraft: RuleDraft{
				Name:        "spam keywords",
				Priority:    5,
				TriggerType: TriggerKeywordMatch,
				TargetTypes: []ContentType{ContentPost, ContentComment},
				Conditions:  ConditionList{KeywordCondition{Keywords: []string{"spam"}}},
				Actions:     ActionList{FlagAction{Flag: "spam"}},
				IsActive:    true,
			},
		},
	}
	cache := cachestore.NewMemRoleCache(10, time.Hour, time.Minute)
	flags := flagstore.NewMemFlagStore()
	sets := setstore.NewMemSetStore()
	sets.Put("bad-words", []string{"scam", "free money"})
	sets.Put("bad-domains", []string{"evil.example.com"})

	users := NewMemUserStore()
	users.Roles["u1"] = []string{}
	users.Roles["mod1"] = []string{"moderator"}

	engine := Engine{
		Logger:   slog.Default(),
		Rules:    rules,
		Content:  NewMemContentStore(),
		Users:    users,
		Notifier: &RecordingNotifier{},
		Counters: countstore.NewMemCountStore(),
		Sets:     sets,
		Flags:    flags,
		Cache:    cache,
		Recorder: audit.NewMemRecorder(),
	}
	return engine
}
