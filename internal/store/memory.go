package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// MemoryStore is a process-local LeadStore for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[string]*model.Lead
	order []string // insertion order, for stable lookups
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{leads: make(map[string]*model.Lead)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) FindBySourceURL(_ context.Context, url string) (*model.Lead, error) {
	if url == "" {
		return nil, nil
	}
	return s.find(func(l *model.Lead) bool { return l.SourceURL == url }), nil
}

func (s *MemoryStore) FindByTitleOrg(_ context.Context, title, organization string) (*model.Lead, error) {
	tk, ok := identityKey(title), identityKey(organization)
	return s.find(func(l *model.Lead) bool {
		return identityKey(l.Title) == tk && identityKey(l.OrganizationName) == ok
	}), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leads[id]; ok {
		return clone(l), nil
	}
	return nil, nil
}

func (s *MemoryStore) find(match func(*model.Lead) bool) *model.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if l := s.leads[id]; match(l) {
			return clone(l)
		}
	}
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, lead *model.Lead) error {
	stampInsert(lead, uuid.NewString)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leads[lead.ID]; !exists {
		s.order = append(s.order, lead.ID)
	}
	s.leads[lead.ID] = clone(lead)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, lead *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.leads[lead.ID]
	if !ok {
		return errNotFound(lead.ID)
	}
	next := clone(lead)
	next.CreatedAt = prev.CreatedAt
	s.leads[lead.ID] = next
	return nil
}

func (s *MemoryStore) List(_ context.Context, f LeadFilter) ([]model.Lead, error) {
	s.mu.RLock()
	var out []model.Lead
	for _, id := range s.order {
		l := s.leads[id]
		if f.Temperature != "" && l.Temperature != f.Temperature {
			continue
		}
		if f.Country != "" && l.Country != f.Country {
			continue
		}
		if f.ProjectType != "" && l.ProjectType != f.ProjectType {
			continue
		}
		if l.Score < f.MinScore {
			continue
		}
		out = append(out, *clone(l))
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.Lead) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if limit := limitOf(f); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored leads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

func clone(l *model.Lead) *model.Lead {
	c := *l
	c.Keywords = slices.Clone(l.Keywords)
	c.RawMetadata = maps.Clone(l.RawMetadata)
	if l.MarketDate != nil {
		d := *l.MarketDate
		c.MarketDate = &d
	}
	if l.Budget != nil {
		b := *l.Budget
		c.Budget = &b
	}
	if l.LastAnalyzedAt != nil {
		t := *l.LastAnalyzedAt
		c.LastAnalyzedAt = &t
	}
	return &c
}
