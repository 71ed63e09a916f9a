package normalize

import (
	"strings"

	"github.com/sells-group/lead-pipeline/internal/model"
)

type category struct {
	project  model.ProjectType
	keywords []string // folded
}

// categories are evaluated in this order; ties are resolved to mixed.
var categories = []category{
	{model.ProjectGTB, []string{"gtb", "gtc", "bms", "gestion technique", "supervision batiment", "automatisme cvc"}},
	{model.ProjectGTEB, []string{"gteb", "genie technique electrique", "electricite batiment", "courants forts", "courants faibles"}},
	{model.ProjectHVAC, []string{"cvc", "chauffage", "ventilation", "climatisation", "hvac"}},
	{model.ProjectSupervision, []string{"supervision", "monitoring", "controle"}},
	{model.ProjectElectrical, []string{"electricite", "electrique", "installation electrique"}},
}

// DetectProjectType counts keyword hits per category over text. The
// category with the most hits wins; two or more categories sharing a
// nonzero maximum yield ProjectMixed; no hits yield ProjectNone.
func DetectProjectType(text string) model.ProjectType {
	folded := Fold(text)

	best, bestCount, tied := model.ProjectNone, 0, false
	for _, c := range categories {
		n := 0
		for _, kw := range c.keywords {
			if strings.Contains(folded, kw) {
				n++
			}
		}
		switch {
		case n == 0:
		case n > bestCount:
			best, bestCount, tied = c.project, n, false
		case n == bestCount:
			tied = true
		}
	}
	if bestCount == 0 {
		return model.ProjectNone
	}
	if tied {
		return model.ProjectMixed
	}
	return best
}
