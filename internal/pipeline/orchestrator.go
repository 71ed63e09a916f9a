// Package pipeline runs ingestion passes: it fans out to the source
// connectors, pushes every record through normalize, enrich, score and
// upsert, and reports progress and results.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-pipeline/internal/catalog"
	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/normalize"
	"github.com/sells-group/lead-pipeline/internal/progress"
	"github.com/sells-group/lead-pipeline/internal/resilience"
	"github.com/sells-group/lead-pipeline/internal/source"
)

// Sources selects the connectors for a run.
type Sources interface {
	Select(countries, names []string) ([]source.Connector, error)
}

// Enricher infers sector, size and missing contact data.
type Enricher interface {
	Enrich(ctx context.Context, lead model.NormalizedLead) model.EnrichedLead
}

// Scorer rates an enriched lead.
type Scorer interface {
	Score(ctx context.Context, lead model.EnrichedLead) model.ScoreResult
}

// Catalog stores leads with identity resolution.
type Catalog interface {
	Upsert(ctx context.Context, lead model.EnrichedLead, score model.ScoreResult) (catalog.Outcome, error)
}

// Config tunes a run.
type Config struct {
	// MaxConcurrentSources bounds the connectors fetched in parallel.
	MaxConcurrentSources int
	// SourceTimeout bounds a single connector's Fetch.
	SourceTimeout time.Duration
	// MaxPerSource applies when a request leaves it unset.
	MaxPerSource int
	// Countries applies when a request leaves it unset.
	Countries []string
	// Sources restricts the registry to these names; empty means all.
	Sources []string
}

// DefaultConfig returns the run defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSources: 4,
		SourceTimeout:        2 * time.Minute,
		MaxPerSource:         10,
		Countries:            []string{"Maroc", "France", "Canada"},
	}
}

// Request is the input of one pipeline run.
type Request struct {
	Countries    []string `json:"countries"`
	MaxPerSource int      `json:"max_per_source"`
}

// Orchestrator wires the stages of the pipeline together.
type Orchestrator struct {
	cfg      Config
	sources  Sources
	enricher Enricher
	scorer   Scorer
	catalog  Catalog
	breakers *resilience.Breakers

	// processMu serializes the per-record stages so identity resolution in
	// the catalog never races with itself.
	processMu sync.Mutex
}

// New creates an Orchestrator. breakers may be nil to disable circuit breaking.
func New(cfg Config, sources Sources, enricher Enricher, scorer Scorer, cat Catalog, breakers *resilience.Breakers) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxConcurrentSources <= 0 {
		cfg.MaxConcurrentSources = def.MaxConcurrentSources
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = def.SourceTimeout
	}
	if cfg.MaxPerSource <= 0 {
		cfg.MaxPerSource = def.MaxPerSource
	}
	if len(cfg.Countries) == 0 {
		cfg.Countries = def.Countries
	}
	return &Orchestrator{
		cfg:      cfg,
		sources:  sources,
		enricher: enricher,
		scorer:   scorer,
		catalog:  cat,
		breakers: breakers,
	}
}

// sourceOutcome is what one connector produced.
type sourceOutcome struct {
	ref   model.SourceRef
	found int
	err   error
}

// Run executes one ingestion pass and drives tracker through its lifecycle.
// Source and record failures are folded into the result; only a fault
// outside those boundaries fails the run.
func (o *Orchestrator) Run(ctx context.Context, req Request, tracker *progress.Tracker) (result *model.RunResult, err error) {
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: run panicked: %v", r)
		}
		if err != nil {
			zap.L().Error("pipeline: run failed", zap.Error(err))
			tracker.Fail(err.Error())
			result = nil
		}
	}()

	if len(req.Countries) == 0 {
		req.Countries = o.cfg.Countries
	}
	if req.MaxPerSource <= 0 {
		req.MaxPerSource = o.cfg.MaxPerSource
	}

	connectors, err := o.sources.Select(req.Countries, o.cfg.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: select sources")
	}

	log := zap.L().With(zap.Strings("countries", req.Countries))
	log.Info("pipeline: starting run", zap.Int("sources", len(connectors)))
	tracker.Start(len(connectors))

	result = &model.RunResult{Report: model.NewRunReport(), Leads: []model.ProcessedLead{}}
	outcomes := make([]sourceOutcome, len(connectors))
	var resultMu sync.Mutex

	q := source.Query{Countries: req.Countries, MaxResults: req.MaxPerSource}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentSources)
	for i, c := range connectors {
		outcomes[i].ref = model.SourceRef{Name: c.Name(), URL: c.URL(), Category: c.Category().String()}
		g.Go(func() error {
			tracker.BeginSource(c.Name())
			records, fetchErr := o.fetch(gCtx, c, q)
			outcomes[i].found = len(records)
			outcomes[i].err = fetchErr
			tracker.RecordSourceOutcome(c.Name(), len(records), fetchErr)
			if fetchErr != nil {
				log.Warn("pipeline: source failed", zap.String("source", c.Name()), zap.Error(fetchErr))
				return nil
			}
			log.Info("pipeline: source done", zap.String("source", c.Name()), zap.Int("leads", len(records)))

			for _, raw := range records {
				processed, procErr := o.process(gCtx, raw)
				resultMu.Lock()
				if procErr != nil {
					result.Errors++
				} else {
					result.Leads = append(result.Leads, processed.ProcessedLead)
					if processed.Created {
						result.Created++
					} else if processed.updated {
						result.Updated++
					}
				}
				resultMu.Unlock()
				if procErr != nil {
					log.Warn("pipeline: record failed",
						zap.String("source", c.Name()),
						zap.String("title", raw.Title),
						zap.Error(procErr),
					)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: wait for sources")
	}

	for _, oc := range outcomes {
		rep := &result.Report
		rep.SourcesConsulted = append(rep.SourcesConsulted, oc.ref)
		switch {
		case oc.err != nil:
			rep.Errors = append(rep.Errors, model.SourceError{Source: oc.ref.Name, Error: oc.err.Error()})
		case oc.found > 0:
			rep.SourcesWithResults = append(rep.SourcesWithResults, oc.ref.Name)
		default:
			rep.SourcesWithoutResults = append(rep.SourcesWithoutResults, oc.ref.Name)
		}
		rep.TotalLeadsFound += oc.found
	}
	result.TotalFound = result.Report.TotalLeadsFound

	tracker.Complete(result)
	log.Info("pipeline: run complete",
		zap.Int("found", result.TotalFound),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors),
		zap.Int("source_errors", len(result.Report.Errors)),
	)
	return result, nil
}

// fetch runs one connector under its timeout and circuit breaker. Panics
// come back as errors.
func (o *Orchestrator) fetch(ctx context.Context, c source.Connector, q source.Query) ([]model.RawLeadRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()

	var cb *resilience.CircuitBreaker
	if o.breakers != nil {
		cb = o.breakers.Get(c.Name())
	}
	records, err := resilience.Guard(ctx, cb, func(ctx context.Context) ([]model.RawLeadRecord, error) {
		return c.Fetch(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	if len(records) > q.MaxResults {
		records = records[:q.MaxResults]
	}
	return records, nil
}

// processedLead carries the update flag alongside the public summary.
type processedLead struct {
	model.ProcessedLead
	updated bool
}

// process takes one raw record through normalize, enrich, score and upsert.
func (o *Orchestrator) process(ctx context.Context, raw model.RawLeadRecord) (out processedLead, err error) {
	o.processMu.Lock()
	defer o.processMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: process record panicked: %v", r)
		}
	}()

	normalized := normalize.Normalize(raw)
	enriched := o.enricher.Enrich(ctx, normalized)
	score := o.scorer.Score(ctx, enriched)

	res, err := o.catalog.Upsert(ctx, enriched, score)
	if err != nil {
		return processedLead{}, err
	}
	return processedLead{
		ProcessedLead: model.ProcessedLead{
			ID:          res.Lead.ID,
			Title:       res.Lead.Title,
			Score:       res.Lead.Score,
			Temperature: res.Lead.Temperature,
			Created:     res.Created,
		},
		updated: res.Updated,
	}, nil
}
