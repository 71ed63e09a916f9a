// Package source holds the lead source connectors: tender boards,
// directories and job boards scraped as HTML, tender feeds, the Overpass
// open-data API and a deterministic examples fixture.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// Category groups connectors by the kind of origin they read.
type Category int

const (
	// TenderBoard covers public procurement portals and tender feeds.
	TenderBoard Category = iota + 1
	// OpenData covers open geographic datasets.
	OpenData
	// Directory covers business directories.
	Directory
	// JobBoard covers job posting sites.
	JobBoard
	// Fixture is the offline examples source.
	Fixture
)

// String returns the category name used in reports and config.
func (c Category) String() string {
	switch c {
	case TenderBoard:
		return "tender_board"
	case OpenData:
		return "open_data"
	case Directory:
		return "directory"
	case JobBoard:
		return "job_board"
	case Fixture:
		return "fixture"
	default:
		return "unknown"
	}
}

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "tender_board", "tender":
		return TenderBoard, nil
	case "open_data":
		return OpenData, nil
	case "directory":
		return Directory, nil
	case "job_board", "jobs":
		return JobBoard, nil
	case "fixture":
		return Fixture, nil
	default:
		return 0, eris.Errorf("unknown source category: %q (valid: tender_board, open_data, directory, job_board, fixture)", s)
	}
}

// Query carries the per-run parameters handed to every connector.
type Query struct {
	Countries  []string
	MaxResults int
}

// Connector fetches and parses one external origin of candidate leads.
type Connector interface {
	// Name is the unique registry key, e.g. "boamp" or "overpass_ma".
	Name() string

	// Category returns the kind of origin.
	Category() Category

	// Country returns the country the connector covers, or "" when it is
	// not tied to one.
	Country() string

	// URL is the public entry point reported in run reports.
	URL() string

	// Fetch returns at most q.MaxResults records. Faults on individual
	// requests or items are logged and skipped; an error is returned only
	// when the source as a whole could not be read.
	Fetch(ctx context.Context, q Query) ([]model.RawLeadRecord, error)
}

// Options are the settings shared by the network connectors.
type Options struct {
	// Keywords drive search queries and the relevance filter.
	Keywords []string
	// Delay separates consecutive requests to the same source.
	Delay time.Duration
	// RequestTimeout bounds each request.
	RequestTimeout time.Duration
}

// DefaultKeywords is the building-systems search vocabulary.
var DefaultKeywords = []string{
	"GTB", "GTC", "BMS", "Gestion technique du bâtiment",
	"Supervision bâtiment", "Automatisme CVC",
	"Electricité bâtiment", "Courants forts", "Courants faibles",
	"GTEB", "Génie Technique Électrique du Bâtiment",
	"Installation électrique", "Maintenance GTB", "Intégration GTB",
}

// DefaultOptions returns the connector defaults.
func DefaultOptions() Options {
	return Options{
		Keywords:       DefaultKeywords,
		Delay:          3 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if len(o.Keywords) == 0 {
		o.Keywords = def.Keywords
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = def.RequestTimeout
	}
	return o
}
