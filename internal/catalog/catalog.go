// Package catalog resolves incoming leads against the stored catalog and
// applies the insert-or-merge policy.
package catalog

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/store"
)

// Outcome describes what Upsert did with one lead.
type Outcome struct {
	Lead *model.Lead
	// Created is set when no stored lead matched.
	Created bool
	// Updated is set when a match was overwritten by a better-scoring version.
	Updated bool
}

// Engine performs identity resolution and merging over a LeadStore.
type Engine struct {
	store   store.LeadStore
	nowFunc func() time.Time
	log     *zap.Logger
}

// New creates an Engine over s.
func New(s store.LeadStore) *Engine {
	return &Engine{
		store:   s,
		nowFunc: time.Now,
		log:     zap.L().With(zap.String("component", "catalog")),
	}
}

// WithClock replaces the engine clock. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.nowFunc = now
	return e
}

// Resolve finds the stored lead for in: by source URL when one is set,
// then by case-insensitive title and organization. The title/organization
// fallback needs both fields; generic titles without an organization are
// not an identity.
func (e *Engine) Resolve(ctx context.Context, in model.EnrichedLead) (*model.Lead, error) {
	if in.SourceURL != "" {
		existing, err := e.store.FindBySourceURL(ctx, in.SourceURL)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.OrganizationName) == "" {
		return nil, nil
	}
	return e.store.FindByTitleOrg(ctx, in.Title, in.OrganizationName)
}

// Upsert inserts in as a new lead or merges it into its match. A match is
// only overwritten when the new score is strictly higher; otherwise it is
// returned unchanged.
func (e *Engine) Upsert(ctx context.Context, in model.EnrichedLead, score model.ScoreResult) (Outcome, error) {
	existing, err := e.Resolve(ctx, in)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "catalog: resolve lead")
	}

	if existing == nil {
		lead := newLead(in, score, e.nowFunc().UTC())
		if err := e.store.Insert(ctx, lead); err != nil {
			return Outcome{}, eris.Wrap(err, "catalog: insert lead")
		}
		e.log.Debug("lead created",
			zap.String("id", lead.ID),
			zap.String("title", lead.Title),
			zap.Int("score", lead.Score),
		)
		return Outcome{Lead: lead, Created: true}, nil
	}

	if score.Score <= existing.Score {
		return Outcome{Lead: existing}, nil
	}

	prev := existing.Score
	Merge(existing, in, score, e.nowFunc().UTC())
	if err := e.store.Update(ctx, existing); err != nil {
		return Outcome{}, eris.Wrapf(err, "catalog: update lead %s", existing.ID)
	}
	e.log.Debug("lead improved",
		zap.String("id", existing.ID),
		zap.Int("from", prev),
		zap.Int("to", existing.Score),
	)
	return Outcome{Lead: existing, Updated: true}, nil
}

func newLead(in model.EnrichedLead, score model.ScoreResult, now time.Time) *model.Lead {
	return &model.Lead{
		EnrichedLead:  in,
		Score:         score.Score,
		Temperature:   score.Temperature,
		Justification: score.Justification,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Merge copies every non-empty field of in onto dst and takes the score
// wholesale. Bookkeeping (contacted, converted, notes, created_at) is kept.
func Merge(dst *model.Lead, in model.EnrichedLead, score model.ScoreResult, now time.Time) {
	setString(&dst.Source, in.Source)
	if in.LeadType.Valid() {
		dst.LeadType = in.LeadType
	}
	setString(&dst.Title, in.Title)
	setString(&dst.Description, in.Description)
	setString(&dst.OrganizationName, in.OrganizationName)
	setString(&dst.Website, in.Website)
	setString(&dst.Phone, in.Phone)
	setString(&dst.Email, in.Email)
	setString(&dst.City, in.City)
	setString(&dst.Country, in.Country)
	setString(&dst.MarketURL, in.MarketURL)
	setString(&dst.SourceURL, in.SourceURL)
	if in.MarketDate != nil {
		d := *in.MarketDate
		dst.MarketDate = &d
	}
	if in.Budget != nil {
		b := *in.Budget
		dst.Budget = &b
	}
	if len(in.Keywords) > 0 {
		dst.Keywords = slices.Clone(in.Keywords)
	}
	if len(in.RawMetadata) > 0 {
		dst.RawMetadata = maps.Clone(in.RawMetadata)
	}
	if in.ProjectType != model.ProjectNone {
		dst.ProjectType = in.ProjectType
	}
	if in.Sector != "" {
		dst.Sector = in.Sector
	}
	if in.SizeClass != "" {
		dst.SizeClass = in.SizeClass
	}

	dst.Score = score.Score
	dst.Temperature = score.Temperature
	dst.Justification = score.Justification
	dst.UpdatedAt = now
	dst.LastAnalyzedAt = &now
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
