// Package store persists the lead catalog.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Temperature model.Temperature `json:"temperature,omitempty"`
	Country     string            `json:"country,omitempty"`
	ProjectType model.ProjectType `json:"project_type,omitempty"`
	MinScore    int               `json:"min_score,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
}

// DefaultListLimit applies when LeadFilter.Limit is not set.
const DefaultListLimit = 100

// LeadStore is the catalog persistence contract. Lookups return (nil, nil)
// when nothing matches.
type LeadStore interface {
	// FindBySourceURL returns the lead recorded under url.
	FindBySourceURL(ctx context.Context, url string) (*model.Lead, error)
	// FindByTitleOrg matches title and organization case-insensitively.
	FindByTitleOrg(ctx context.Context, title, organization string) (*model.Lead, error)
	Get(ctx context.Context, id string) (*model.Lead, error)

	// Insert stores a new lead, assigning its ID when empty.
	Insert(ctx context.Context, lead *model.Lead) error
	// Update overwrites the stored lead with the same ID.
	Update(ctx context.Context, lead *model.Lead) error

	// List returns leads ordered by score then recency, best first.
	List(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	Migrate(ctx context.Context) error
	Close() error
}

// identityKey folds a title or organization for case-insensitive matching.
func identityKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func errNotFound(id string) error {
	return eris.Errorf("lead not found: %s", id)
}

func stampInsert(lead *model.Lead, id func() string) {
	if lead.ID == "" {
		lead.ID = id()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = lead.CreatedAt
	}
}

func limitOf(f LeadFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// jsonColumns encodes the keyword list and raw metadata.
func jsonColumns(lead *model.Lead) (keywords, raw string, err error) {
	kw := lead.Keywords
	if kw == nil {
		kw = []string{}
	}
	kb, err := json.Marshal(kw)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal keywords")
	}
	rb := []byte("{}")
	if len(lead.RawMetadata) > 0 {
		if rb, err = json.Marshal(lead.RawMetadata); err != nil {
			return "", "", eris.Wrap(err, "marshal raw metadata")
		}
	}
	return string(kb), string(rb), nil
}

func decodeJSONColumns(lead *model.Lead, keywords, raw []byte) error {
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &lead.Keywords); err != nil {
			return eris.Wrap(err, "unmarshal keywords")
		}
		if len(lead.Keywords) == 0 {
			lead.Keywords = nil
		}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &lead.RawMetadata); err != nil {
			return eris.Wrap(err, "unmarshal raw metadata")
		}
		if len(lead.RawMetadata) == 0 {
			lead.RawMetadata = nil
		}
	}
	return nil
}
