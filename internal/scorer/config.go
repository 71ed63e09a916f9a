// Package scorer rates enriched leads against the commercial-fit rubric and
// explains the result.
package scorer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// Weights are the points each rule contributes.
type Weights struct {
	// Project type.
	NicheProject     int
	MixedProject     int
	SecondaryProject int
	KeywordHit       int

	// Tender bonuses.
	Tender          int
	BudgetHigh      int
	BudgetMedium    int
	RecentMonth     int
	RecentQuarter   int
	JobPosting      int
	BudgetHighAbove float64
	BudgetMedAbove  float64

	// Organization size.
	SizeLarge  int
	SizeMedium int
	SizeSmall  int

	// Completeness.
	Email       int
	Phone       int
	Website     int
	Description int

	// Sector.
	PrioritySector  int
	SecondarySector int
}

// DefaultWeights returns the production rubric.
func DefaultWeights() Weights {
	return Weights{
		NicheProject:     30,
		MixedProject:     25,
		SecondaryProject: 15,
		KeywordHit:       10,

		Tender:          25,
		BudgetHigh:      5,
		BudgetMedium:    3,
		RecentMonth:     5,
		RecentQuarter:   3,
		JobPosting:      20,
		BudgetHighAbove: 1_000_000,
		BudgetMedAbove:  100_000,

		SizeLarge:  15,
		SizeMedium: 10,
		SizeSmall:  5,

		Email:       3,
		Phone:       2,
		Website:     2,
		Description: 3,

		PrioritySector:  10,
		SecondarySector: 5,
	}
}

// completenessMax caps the contact-completeness bonus.
const completenessMax = 10

// ValidateWeights checks that w is internally consistent.
func ValidateWeights(w Weights) error {
	var errs []string

	points := map[string]int{
		"niche_project":     w.NicheProject,
		"mixed_project":     w.MixedProject,
		"secondary_project": w.SecondaryProject,
		"keyword_hit":       w.KeywordHit,
		"tender":            w.Tender,
		"budget_high":       w.BudgetHigh,
		"budget_medium":     w.BudgetMedium,
		"recent_month":      w.RecentMonth,
		"recent_quarter":    w.RecentQuarter,
		"job_posting":       w.JobPosting,
		"size_large":        w.SizeLarge,
		"size_medium":       w.SizeMedium,
		"size_small":        w.SizeSmall,
		"email":             w.Email,
		"phone":             w.Phone,
		"website":           w.Website,
		"description":       w.Description,
		"priority_sector":   w.PrioritySector,
		"secondary_sector":  w.SecondarySector,
	}
	for name, p := range points {
		if p < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if sum := w.Email + w.Phone + w.Website + w.Description; sum > completenessMax {
		errs = append(errs, fmt.Sprintf("completeness weights must sum to <= %d, got %d", completenessMax, sum))
	}
	if w.BudgetMedAbove < 0 || w.BudgetHighAbove < w.BudgetMedAbove {
		errs = append(errs, "budget thresholds must satisfy 0 <= medium <= high")
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return eris.Errorf("scorer: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
