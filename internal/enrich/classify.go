package enrich

import (
	"strings"

	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/normalize"
)

type sectorRule struct {
	sector   model.Sector
	keywords []string
}

// Evaluated in order; the first sector with a hit wins.
var sectorRules = []sectorRule{
	{model.SectorHospital, []string{"hopital", "hospital", "sante", "medical", "clinique", "chirurgie"}},
	{model.SectorIndustry, []string{"industrie", "industriel", "usine", "production", "manufacturing", "factory"}},
	{model.SectorTertiary, []string{"bureau", "tertiaire", "commercial", "centre commercial", "shopping", "magasin"}},
	{model.SectorPublic, []string{"mairie", "prefecture", "ministere", "collectivite", "public"}},
	{model.SectorResidential, []string{"residence", "appartement", "logement", "habitation", "immeuble"}},
}

var (
	largeIndicators = []string{"groupe", "group", "international", "multinational", "holding", "corporation", "corp"}
	smallIndicators = []string{"sasu", "eurl", "auto-entrepreneur", "auto entrepreneur", "freelance", "artisan"}
)

// DetectSector classifies the organization behind a lead from its title,
// description and organization name.
func DetectSector(title, description, organization string) model.Sector {
	text := normalize.Fold(strings.Join([]string{title, description, organization}, " "))
	for _, rule := range sectorRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.sector
			}
		}
	}
	return model.SectorOther
}

// SizeFromIndicators infers a size class from legal-entity and group
// keywords. ok is false when the text carries no signal.
func SizeFromIndicators(organization, description string) (size model.SizeClass, ok bool) {
	text := normalize.Fold(organization + " " + description)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	})
	joined := " " + strings.Join(words, " ") + " "

	for _, ind := range largeIndicators {
		if strings.Contains(text, ind) {
			return model.SizeLarge, true
		}
	}
	for _, ind := range smallIndicators {
		if strings.Contains(joined, " "+ind+" ") {
			return model.SizeSmall, true
		}
	}
	return "", false
}

// SizeFromLinks maps the number of links on an organization's home page to a
// size class. ok is false below the medium threshold.
func SizeFromLinks(links int) (size model.SizeClass, ok bool) {
	switch {
	case links > 100:
		return model.SizeLarge, true
	case links > 20:
		return model.SizeMedium, true
	}
	return "", false
}
