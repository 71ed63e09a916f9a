package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/store"
)

// Service re-evaluates leads that are already in the catalog.
type Service struct {
	store    store.LeadStore
	enricher Enricher
	scorer   Scorer
	nowFunc  func() time.Time
}

// NewService creates a Service.
func NewService(s store.LeadStore, enricher Enricher, scorer Scorer) *Service {
	return &Service{store: s, enricher: enricher, scorer: scorer, nowFunc: time.Now}
}

// Reanalyze re-enriches and re-scores a stored lead with the current clock
// and saves the new score unconditionally. Sector and size class are
// refreshed; an email is only filled in when the lead has none.
func (s *Service) Reanalyze(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load lead %s", id)
	}
	if lead == nil {
		return nil, eris.Errorf("pipeline: lead not found: %s", id)
	}

	enriched := s.enricher.Enrich(ctx, lead.NormalizedLead)
	score := s.scorer.Score(ctx, enriched)

	now := s.nowFunc().UTC()
	prev := lead.Score
	lead.Sector = enriched.Sector
	lead.SizeClass = enriched.SizeClass
	if lead.Email == "" {
		lead.Email = enriched.Email
	}
	lead.Score = score.Score
	lead.Temperature = score.Temperature
	lead.Justification = score.Justification
	lead.UpdatedAt = now
	lead.LastAnalyzedAt = &now

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, eris.Wrapf(err, "pipeline: save lead %s", id)
	}
	zap.L().Info("pipeline: lead reanalyzed",
		zap.String("id", id),
		zap.Int("from", prev),
		zap.Int("to", lead.Score),
		zap.String("temperature", string(lead.Temperature)),
	)
	return lead, nil
}
