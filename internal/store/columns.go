package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/lead-pipeline/internal/model"
)

// selectColumns is the column order every scan expects.
var selectColumns = []string{
	"id", "source", "lead_type", "title", "description", "organization_name",
	"website", "phone", "email", "city", "country",
	"market_date", "budget", "market_url", "source_url", "keywords", "raw_data",
	"project_type", "sector", "company_size",
	"score", "temperature", "score_justification",
	"is_contacted", "is_converted", "notes",
	"created_at", "updated_at", "last_analyzed_at",
}

// writeColumns are selectColumns plus the identity keys.
var writeColumns = append(append([]string{}, selectColumns...), "title_key", "org_key")

var leadColumnList = strings.Join(selectColumns, ", ")

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// writeArgs returns the values for writeColumns, in order.
func writeArgs(lead *model.Lead) ([]any, error) {
	keywords, raw, err := jsonColumns(lead)
	if err != nil {
		return nil, err
	}
	return []any{
		lead.ID, lead.Source, string(lead.LeadType), lead.Title, lead.Description, lead.OrganizationName,
		lead.Website, lead.Phone, lead.Email, lead.City, lead.Country,
		nullable(lead.MarketDate), nullable(lead.Budget), lead.MarketURL, lead.SourceURL, keywords, raw,
		string(lead.ProjectType), string(lead.Sector), string(lead.SizeClass),
		lead.Score, string(lead.Temperature), lead.Justification,
		lead.IsContacted, lead.IsConverted, lead.Notes,
		lead.CreatedAt, lead.UpdatedAt, nullable(lead.LastAnalyzedAt),
		identityKey(lead.Title), identityKey(lead.OrganizationName),
	}, nil
}

// placeholder renders the i-th (1-based) bind parameter.
type placeholder func(i int) string

func dollar(i int) string { return fmt.Sprintf("$%d", i) }
func question(int) string { return "?" }
func numbered(i int) string { return fmt.Sprintf("?%d", i) }

func insertSQL(ph placeholder) string {
	marks := make([]string, len(writeColumns))
	for i := range writeColumns {
		marks[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO leads (%s) VALUES (%s)",
		strings.Join(writeColumns, ", "), strings.Join(marks, ", "))
}

// updateSQL sets every write column except id and created_at; the id is the
// first bind parameter. updateArgs produces the matching values.
func updateSQL(ph placeholder) string {
	var sets []string
	n := 2
	for _, col := range writeColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", col, ph(n)))
		n++
	}
	return fmt.Sprintf("UPDATE leads SET %s WHERE id = %s", strings.Join(sets, ", "), ph(1))
}

func updateArgs(lead *model.Lead) ([]any, error) {
	all, err := writeArgs(lead)
	if err != nil {
		return nil, err
	}
	args := []any{lead.ID}
	for i, col := range writeColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		args = append(args, all[i])
	}
	return args, nil
}

// listSQL builds the filtered listing query and its arguments.
func listSQL(f LeadFilter, ph placeholder) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, ph(len(args))))
	}
	if f.Temperature != "" {
		bind("temperature = %s", string(f.Temperature))
	}
	if f.Country != "" {
		bind("country = %s", f.Country)
	}
	if f.ProjectType != "" {
		bind("project_type = %s", string(f.ProjectType))
	}
	if f.MinScore > 0 {
		bind("score >= %s", f.MinScore)
	}

	q := "SELECT " + leadColumnList + " FROM leads"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY score DESC, created_at DESC"

	args = append(args, limitOf(f))
	q += " LIMIT " + ph(len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += " OFFSET " + ph(len(args))
	}
	return q, args
}

// leadScan holds the raw column values of one row before conversion.
type leadScan struct {
	lead           model.Lead
	leadType       string
	projectType    string
	sector         string
	sizeClass      string
	temperature    string
	keywords       []byte
	raw            []byte
	marketDate     *time.Time
	budget         *float64
	lastAnalyzedAt *time.Time
}

func (s *leadScan) dest() []any {
	l := &s.lead
	return []any{
		&l.ID, &l.Source, &s.leadType, &l.Title, &l.Description, &l.OrganizationName,
		&l.Website, &l.Phone, &l.Email, &l.City, &l.Country,
		&s.marketDate, &s.budget, &l.MarketURL, &l.SourceURL, &s.keywords, &s.raw,
		&s.projectType, &s.sector, &s.sizeClass,
		&l.Score, &s.temperature, &l.Justification,
		&l.IsContacted, &l.IsConverted, &l.Notes,
		&l.CreatedAt, &l.UpdatedAt, &s.lastAnalyzedAt,
	}
}

func (s *leadScan) finish() (*model.Lead, error) {
	l := s.lead
	l.LeadType = model.LeadType(s.leadType)
	l.ProjectType = model.ProjectType(s.projectType)
	l.Sector = model.Sector(s.sector)
	l.SizeClass = model.SizeClass(s.sizeClass)
	l.Temperature = model.Temperature(s.temperature)
	l.MarketDate = s.marketDate
	l.Budget = s.budget
	l.LastAnalyzedAt = s.lastAnalyzedAt
	if err := decodeJSONColumns(&l, s.keywords, s.raw); err != nil {
		return nil, err
	}
	return &l, nil
}
