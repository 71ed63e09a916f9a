package scorer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// Temperature thresholds, inclusive lower bounds.
const (
	HotThreshold  = 70
	WarmThreshold = 40
)

// ErrCapabilityUnavailable is returned when no justification could be
// generated: the capability is absent or exhausted its attempts.
var ErrCapabilityUnavailable = eris.New("scorer: text generation unavailable")

// TextGenerator produces text from a prompt and a system prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Scorer evaluates leads. The zero value is not usable; use New.
type Scorer struct {
	weights Weights
	gen     TextGenerator
	nowFunc func() time.Time
}

// New creates a Scorer with the default weights. gen may be nil, in which
// case every justification uses the template.
func New(gen TextGenerator) *Scorer {
	return &Scorer{weights: DefaultWeights(), gen: gen, nowFunc: time.Now}
}

// NewWithWeights creates a Scorer with custom weights.
func NewWithWeights(gen TextGenerator, w Weights) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	s := New(gen)
	s.weights = w
	return s, nil
}

// WithClock sets the evaluation clock.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.nowFunc = now
	return s
}

// Score evaluates lead and explains the result. It never fails; a failed
// justification falls back to the template.
func (s *Scorer) Score(ctx context.Context, lead model.EnrichedLead) model.ScoreResult {
	score, factors := s.Evaluate(lead)
	res := model.ScoreResult{
		Score:       score,
		Temperature: Temperature(score),
		Factors:     factors,
	}

	text, err := s.justify(ctx, lead, res)
	if err != nil {
		zap.L().Warn("scorer: justification fell back to template",
			zap.String("title", lead.Title),
			zap.Error(err),
		)
		text = FallbackJustification(res.Score, res.Temperature, res.Factors)
	}
	res.Justification = text
	return res
}

// Evaluate applies the rules in order and returns the clamped score with the
// contributing factors.
func (s *Scorer) Evaluate(lead model.EnrichedLead) (int, []string) {
	w := s.weights
	var (
		score   int
		factors []string
	)
	add := func(points int, format string, args ...any) {
		score += points
		factors = append(factors, fmt.Sprintf(format, args...)+fmt.Sprintf(" (+%d)", points))
	}

	switch pt := lead.ProjectType; {
	case pt.IsNiche():
		add(w.NicheProject, "Explicit %s project identified", pt)
	case pt == model.ProjectMixed:
		add(w.MixedProject, "Mixed GTB/GTEB project identified")
	case pt.IsSecondary():
		add(w.SecondaryProject, "%s project identified", pt)
	case len(lead.Keywords) > 0:
		add(w.KeywordHit, "GTB keywords detected: %d", len(lead.Keywords))
	}

	switch lead.LeadType {
	case model.LeadTypeTender:
		add(w.Tender, "Public tender identified")
		if b := lead.Budget; b != nil {
			switch {
			case *b > w.BudgetHighAbove:
				add(w.BudgetHigh, "High budget (>%s)", compactAmount(w.BudgetHighAbove))
			case *b > w.BudgetMedAbove:
				add(w.BudgetMedium, "Medium budget (>%s)", compactAmount(w.BudgetMedAbove))
			}
		}
		if d := lead.MarketDate; d != nil {
			switch age := daysSince(*d, s.nowFunc()); {
			case age < 30:
				add(w.RecentMonth, "Recent tender (<30 days)")
			case age < 90:
				add(w.RecentQuarter, "Recent tender (<90 days)")
			}
		}
	case model.LeadTypeJob:
		add(w.JobPosting, "Active GTB job posting (hiring signal)")
	}

	switch lead.SizeClass {
	case model.SizeLarge:
		add(w.SizeLarge, "Large organization")
	case model.SizeMedium:
		add(w.SizeMedium, "Medium-sized organization")
	case model.SizeSmall:
		add(w.SizeSmall, "Small organization")
	}

	completeness := 0
	if lead.Email != "" {
		completeness += w.Email
	}
	if lead.Phone != "" {
		completeness += w.Phone
	}
	if lead.Website != "" {
		completeness += w.Website
	}
	if lead.Description != "" {
		completeness += w.Description
	}
	completeness = min(completeness, completenessMax)
	if completeness > 0 {
		add(completeness, "Contact details completeness %d/%d", completeness, completenessMax)
	}

	switch lead.Sector {
	case model.SectorHospital, model.SectorIndustry, model.SectorPublic:
		add(w.PrioritySector, "Priority sector: %s", lead.Sector)
	case model.SectorTertiary:
		add(w.SecondarySector, "Sector: %s", lead.Sector)
	}

	return Clamp(score), factors
}

// Clamp bounds a raw score to [0, 100].
func Clamp(score int) int {
	return max(0, min(score, 100))
}

// Temperature buckets a score.
func Temperature(score int) model.Temperature {
	switch {
	case score >= HotThreshold:
		return model.TemperatureHot
	case score >= WarmThreshold:
		return model.TemperatureWarm
	}
	return model.TemperatureCold
}

// daysSince counts whole calendar days from d to now in UTC. Future dates
// are negative.
func daysSince(d, now time.Time) int {
	day := func(t time.Time) time.Time {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return int(day(now).Sub(day(d)).Hours() / 24)
}

func compactAmount(v float64) string {
	switch {
	case v >= 1_000_000 && int64(v)%1_000_000 == 0:
		return fmt.Sprintf("%dM", int64(v)/1_000_000)
	case v >= 1_000 && int64(v)%1_000 == 0:
		return fmt.Sprintf("%dK", int64(v)/1_000)
	}
	return fmt.Sprintf("%.0f", v)
}

// FallbackJustification is the templated explanation used when text
// generation is unavailable.
func FallbackJustification(score int, temp model.Temperature, factors []string) string {
	parts := []string{
		fmt.Sprintf("Score of %d/100 (%s)", score, strings.ToUpper(string(temp))),
		fmt.Sprintf("Based on: %d evaluation factor(s)", len(factors)),
	}
	if len(factors) > 0 {
		parts = append(parts, "Key points: "+factors[0])
		if len(factors) > 1 {
			parts = append(parts, fmt.Sprintf("and %d other factor(s)", len(factors)-1))
		}
	}
	return strings.Join(parts, ". ") + "."
}

const justificationSystem = "You are an expert analyst of building-management (GTB/GTEB) sales leads. " +
	"Write clear, professional score justifications."

func (s *Scorer) justify(ctx context.Context, lead model.EnrichedLead, res model.ScoreResult) (string, error) {
	if s.gen == nil {
		return "", ErrCapabilityUnavailable
	}
	text, err := s.gen.Generate(ctx, justificationPrompt(lead, res), justificationSystem)
	if err != nil {
		return "", eris.Wrapf(ErrCapabilityUnavailable, "generate: %v", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", eris.Wrap(ErrCapabilityUnavailable, "empty justification")
	}
	return text, nil
}

func justificationPrompt(lead model.EnrichedLead, res model.ScoreResult) string {
	var b strings.Builder
	b.WriteString("Analyze this GTB/GTEB sales lead and write a clear, professional justification of its score.\n\n")
	b.WriteString("Lead data:\n")
	fmt.Fprintf(&b, "- Type: %s\n", lead.LeadType)
	fmt.Fprintf(&b, "- Organization: %s\n", lead.OrganizationName)
	fmt.Fprintf(&b, "- Title: %s\n", lead.Title)
	fmt.Fprintf(&b, "- Location: %s, %s\n", lead.City, lead.Country)
	fmt.Fprintf(&b, "- Project type: %s\n", lead.ProjectType)
	fmt.Fprintf(&b, "- Sector: %s\n", lead.Sector)
	fmt.Fprintf(&b, "- Organization size: %s\n", lead.SizeClass)
	fmt.Fprintf(&b, "- Computed score: %d/100\n", res.Score)
	fmt.Fprintf(&b, "- Temperature: %s\n", res.Temperature)
	fmt.Fprintf(&b, "- Factors: %s\n\n", strings.Join(res.Factors, ", "))
	b.WriteString("Write a 2-3 sentence justification explaining why this lead has this score and temperature.")
	return b.String()
}
