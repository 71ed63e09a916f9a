package source

import (
	"context"
	"slices"
	"time"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/normalize"
)

// Examples emits a fixed set of records without touching the network. It
// is wired like any other connector so runs can be exercised offline.
type Examples struct {
	nowFunc func() time.Time
}

// NewExamples creates the fixture connector. A nil clock uses time.Now.
func NewExamples(now func() time.Time) *Examples {
	if now == nil {
		now = time.Now
	}
	return &Examples{nowFunc: now}
}

func (e *Examples) Name() string       { return "examples" }
func (e *Examples) Category() Category { return Fixture }
func (e *Examples) Country() string    { return "" }
func (e *Examples) URL() string        { return "fixture://examples" }

// Fetch returns the fixtures for the requested countries (all when empty).
func (e *Examples) Fetch(_ context.Context, q Query) ([]model.RawLeadRecord, error) {
	now := e.nowFunc().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	inMonth := today.AddDate(0, 0, 30)

	countries := make([]string, 0, len(q.Countries))
	for _, c := range q.Countries {
		countries = append(countries, normalize.Country(c))
	}
	wants := func(country string) bool {
		return len(countries) == 0 || slices.Contains(countries, country)
	}

	var out []model.RawLeadRecord
	if wants("Maroc") {
		out = append(out, model.RawLeadRecord{
			Source:           e.Name(),
			LeadType:         model.LeadTypeTender,
			Title:            "Marché public - Installation GTB pour hôpital régional",
			Description:      "Appel d'offres pour l'installation d'un système de gestion technique du bâtiment (GTB) dans un nouvel hôpital régional. Le projet comprend la supervision des équipements CVC, éclairage et sécurité.",
			OrganizationName: "Ministère de la Santé - Maroc",
			City:             "Casablanca",
			Country:          "Maroc",
			MarketDate:       &today,
			Budget:           ptr(2_500_000.0),
			MarketURL:        "https://example.com/marche-123",
			SourceURL:        "https://example.com/marche-123",
			Keywords:         []string{"GTB", "Gestion technique du bâtiment", "Supervision bâtiment"},
		})
	}
	if wants("France") {
		out = append(out, model.RawLeadRecord{
			Source:           e.Name(),
			LeadType:         model.LeadTypeTender,
			Title:            "Maintenance et évolution système GTB - Bâtiment administratif",
			Description:      "Marché public pour la maintenance et l'évolution du système de gestion technique du bâtiment d'un bâtiment administratif de 5000 m². Prestations incluant supervision, automatismes CVC et électricité.",
			OrganizationName: "Mairie de Paris",
			City:             "Paris",
			Country:          "France",
			MarketDate:       &inMonth,
			Budget:           ptr(180_000.0),
			MarketURL:        "https://example.com/marche-456",
			SourceURL:        "https://example.com/marche-456",
			Keywords:         []string{"GTB", "Automatisme CVC", "Supervision"},
		})
	}
	if wants("Maroc") {
		out = append(out, model.RawLeadRecord{
			Source:           e.Name(),
			LeadType:         model.LeadTypeCompany,
			Title:            "Bureau d'études spécialisé en GTB et GTEB",
			Description:      "Bureau d'études technique spécialisé dans la conception et l'intégration de systèmes GTB et GTEB pour le secteur industriel et tertiaire.",
			OrganizationName: "TechBâtiment Solutions",
			City:             "Rabat",
			Country:          "Maroc",
			Website:          "https://example.com/techbatiment",
			SourceURL:        "https://example.com/techbatiment",
			Keywords:         []string{"GTB", "GTEB"},
		})
	}

	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }
