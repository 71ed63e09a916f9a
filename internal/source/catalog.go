package source

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-pipeline/internal/fetcher"
	"github.com/sells-group/lead-pipeline/internal/model"
)

// Catalog is the set of declaratively configured sources.
type Catalog struct {
	Boards []BoardSpec `yaml:"boards"`
	Feeds  []FeedSpec  `yaml:"feeds"`
}

// DefaultCatalog returns the built-in boards and feeds.
func DefaultCatalog() Catalog {
	return Catalog{Boards: defaultBoards(), Feeds: defaultFeeds()}
}

// LoadCatalog reads a YAML catalogue and merges it over the defaults:
// entries with a known name replace the built-in spec, others are appended.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cat, eris.Wrapf(err, "source: read catalog %s", path)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cat, eris.Wrapf(err, "source: parse catalog %s", path)
	}

	for _, b := range file.Boards {
		if err := b.Validate(); err != nil {
			return cat, err
		}
		cat.Boards = upsertBoard(cat.Boards, b)
	}
	for _, f := range file.Feeds {
		if err := f.Validate(); err != nil {
			return cat, err
		}
		cat.Feeds = upsertFeed(cat.Feeds, f)
	}
	return cat, nil
}

func upsertBoard(boards []BoardSpec, b BoardSpec) []BoardSpec {
	for i := range boards {
		if boards[i].Name == b.Name {
			boards[i] = b
			return boards
		}
	}
	return append(boards, b)
}

func upsertFeed(feeds []FeedSpec, f FeedSpec) []FeedSpec {
	for i := range feeds {
		if feeds[i].Name == f.Name {
			feeds[i] = f
			return feeds
		}
	}
	return append(feeds, f)
}

// Build registers every catalogue source, one Overpass connector per country
// and, when includeExamples is set, the examples fixture.
func Build(cat Catalog, f fetcher.Fetcher, opts Options, includeExamples bool) (*Registry, error) {
	reg := NewRegistry()
	for _, spec := range cat.Boards {
		b, err := NewBoard(spec, f, opts)
		if err != nil {
			return nil, err
		}
		reg.Register(b)
	}
	for _, spec := range cat.Feeds {
		reg.Register(NewFeed(spec, f, opts))
	}
	for _, country := range OverpassCountries() {
		reg.Register(NewOverpass(country, f, opts))
	}
	if includeExamples {
		reg.Register(NewExamples(nil))
	}
	zap.L().Debug("source registry built", zap.Strings("sources", reg.AllNames()))
	return reg, nil
}

func defaultBoards() []BoardSpec {
	return []BoardSpec{
		{
			Name:            "boamp",
			Country:         "France",
			Category:        "tender_board",
			LeadType:        model.LeadTypeTender,
			BaseURL:         "https://www.boamp.fr",
			Path:            "/avis",
			QueryParam:      "q",
			ExtraParams:     map[string]string{"type": "marche"},
			RequireKeywords: true,
			Selectors: Selectors{
				Items:        []string{"article", `div[class*="avis"]`, `div[data-type="avis"]`, `li[class*="resultat"]`},
				Title:        []string{"h2", "h3", "a.titre", ".titre", `a[href*="/avis/"]`},
				Organization: []string{".maitre-ouvrage", ".organisateur", ".acheteur", `span[title*="acheteur"]`, ".organisme"},
				Date:         []string{"time", `span[class*="date"]`},
				City:         []string{".lieu", ".localisation", `span[class*="lieu"]`},
			},
			Patterns: Patterns{Budget: `(?i)\d[\d\s.,]*\s*(?:M|K|millions?)?\s*(?:€|EUR|euros)`},
		},
		{
			Name:            "marches_publics_ma",
			Country:         "Maroc",
			Category:        "tender_board",
			LeadType:        model.LeadTypeTender,
			BaseURL:         "https://www.marchespublics.gov.ma",
			Path:            "/index.php",
			QueryParam:      "motcle",
			ExtraParams:     map[string]string{"page": "recherche"},
			RequireKeywords: true,
			Selectors: Selectors{
				Items:        []string{`tr[class*="resultat"]`, `tr[class*="ligne"]`, `div[class*="resultat"]`, `li[class*="marche"]`, `div[class*="marche"]`},
				Title:        []string{"a", "h3", "h4", "td"},
				Organization: []string{".acheteur", ".organisme", `td[class*="acheteur"]`},
				Date:         []string{"time"},
				City:         []string{".lieu", `td[class*="lieu"]`},
			},
			Patterns: Patterns{
				Date:   `\d{2}/\d{2}/\d{4}`,
				Budget: `(?i)\d[\d\s.,]*\s*(?:DH|MAD|dirhams?)`,
			},
		},
		{
			Name:            "merx",
			Country:         "Canada",
			Category:        "tender_board",
			LeadType:        model.LeadTypeTender,
			BaseURL:         "https://www.merx.com",
			Path:            "/search",
			QueryParam:      "keywords",
			MaxQueries:      3,
			RequireKeywords: true,
			Selectors: Selectors{
				Items:        []string{`div[class*="result"]`, `div[class*="listing"]`},
				Title:        []string{"h3", "a"},
				Organization: []string{".organization", ".buyer"},
				Date:         []string{"time", `span[class*="date"]`},
			},
			Patterns: Patterns{Budget: `(?i)\$?\s?\d[\d\s.,]*\s*(?:M|K)?\s*(?:\$|CAD)`},
		},
		{
			Name:                  "kerix",
			Country:               "Maroc",
			Category:              "directory",
			LeadType:              model.LeadTypeCompany,
			BaseURL:               "https://www.kerix.net",
			Path:                  "/recherche",
			QueryParam:            "q",
			Queries:               []string{"GTB", "Gestion technique bâtiment", "Électricité bâtiment", "Bureau étude électricité"},
			TitleTemplate:         "Company {title}",
			OrganizationFromTitle: true,
			FixedKeywords:         []string{"GTB", "GTEB"},
			Selectors: Selectors{
				Items:   []string{`div[class*="entreprise"]`, `div[class*="resultat"]`, `li[class*="entreprise"]`, `tr[class*="ligne"]`},
				Title:   []string{"h3", "a.nom", "a"},
				City:    []string{`span[class*="ville"]`},
				Website: []string{`a[href^="http"]`},
			},
			Patterns: Patterns{Phone: `0[5-7]\d{8}`},
		},
		{
			Name:                  "pagesjaunes",
			Country:               "France",
			Category:              "directory",
			LeadType:              model.LeadTypeCompany,
			BaseURL:               "https://www.pagesjaunes.fr",
			Path:                  "/recherche",
			QueryParam:            "quoiqui",
			Queries:               []string{"bureau étude GTB", "intégrateur GTB", "électricité bâtiment"},
			TitleTemplate:         "Company {title}",
			OrganizationFromTitle: true,
			FixedKeywords:         []string{"GTB", "GTEB"},
			Selectors: Selectors{
				Items:   []string{`div[class*="bi-bloc"]`, `article[class*="bi-bloc"]`, `div[class*="resultat"]`},
				Title:   []string{"h2", "a.denomination-links"},
				City:    []string{`span[class*="ville"]`, `div[class*="adresse"]`},
				Phone:   []string{`strong[class*="num"]`},
				Website: []string{`a[href^="http"]`},
			},
		},
		indeedBoard("indeed_ma", "Maroc", "https://ma.indeed.com"),
		indeedBoard("indeed_fr", "France", "https://fr.indeed.com"),
	}
}

func indeedBoard(name, country, baseURL string) BoardSpec {
	return BoardSpec{
		Name:                name,
		Country:             country,
		Category:            "job_board",
		LeadType:            model.LeadTypeJob,
		BaseURL:             baseURL,
		Path:                "/jobs",
		QueryParam:          "q",
		ExtraParams:         map[string]string{"l": country},
		Queries:             []string{"GTB", "Gestion technique bâtiment", "Électricité bâtiment"},
		TitleTemplate:       "GTB job posting - {organization}",
		DescriptionTemplate: "Search: {title}. Location: {city}",
		FixedKeywords:       []string{"GTB", "GTEB"},
		RequireOrganization: true,
		Selectors: Selectors{
			Items:        []string{`div[class*="job"]`, "div[data-jk]", "a[data-jk]"},
			Title:        []string{"h2", `a[class*="title"]`},
			Organization: []string{`span[class*="company"]`},
			City:         []string{`div[class*="location"]`, `div[class*="Location"]`},
		},
	}
}

// defaultFeeds lists the EU tender notices published as RSS for France.
func defaultFeeds() []FeedSpec {
	return []FeedSpec{
		{
			Name:     "ted_fr",
			Country:  "France",
			URL:      "https://ted.europa.eu/en/rss/search?country=FRA&type=contract-notice",
			LeadType: model.LeadTypeTender,
		},
	}
}
