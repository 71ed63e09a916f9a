package model

// SourceRef describes a source consulted during a run.
type SourceRef struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"type"`
}

// SourceError pairs a source name with the failure it reported.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// RunReport summarizes which sources were consulted and what they yielded.
type RunReport struct {
	SourcesConsulted      []SourceRef   `json:"sources_consulted"`
	SourcesWithResults    []string      `json:"sources_with_results"`
	SourcesWithoutResults []string      `json:"sources_without_results"`
	Errors                []SourceError `json:"errors"`
	TotalLeadsFound       int           `json:"total_leads_found"`
}

// NewRunReport returns a report with non-nil slices so it always encodes
// as arrays rather than null.
func NewRunReport() RunReport {
	return RunReport{
		SourcesConsulted:      []SourceRef{},
		SourcesWithResults:    []string{},
		SourcesWithoutResults: []string{},
		Errors:                []SourceError{},
	}
}

// ProcessedLead is the per-lead summary returned with a run result.
type ProcessedLead struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Score       int         `json:"score"`
	Temperature Temperature `json:"temperature"`
	Created     bool        `json:"created"`
}

// RunResult is the full outcome of one pipeline run.
type RunResult struct {
	TotalFound int             `json:"total_found"`
	Created    int             `json:"created"`
	Updated    int             `json:"updated"`
	Errors     int             `json:"errors"`
	Leads      []ProcessedLead `json:"leads"`
	Report     RunReport       `json:"search_report"`
}
