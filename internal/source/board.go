package source

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/fetcher"
	"github.com/sells-group/lead-pipeline/internal/model"
)

// Selectors locate lead fields inside a results page. Each list is tried in
// order and the first selector that matches wins.
type Selectors struct {
	Items        []string `yaml:"items"`
	Title        []string `yaml:"title"`
	Link         []string `yaml:"link"`
	Organization []string `yaml:"organization"`
	Date         []string `yaml:"date"`
	Budget       []string `yaml:"budget"`
	City         []string `yaml:"city"`
	Phone        []string `yaml:"phone"`
	Website      []string `yaml:"website"`
}

// Patterns are regular expressions applied to an item's text when the
// matching selector finds nothing.
type Patterns struct {
	Date   string `yaml:"date"`
	Budget string `yaml:"budget"`
	Phone  string `yaml:"phone"`
}

// BoardSpec describes a selector-driven HTML source.
type BoardSpec struct {
	Name        string            `yaml:"name"`
	Country     string            `yaml:"country"`
	Category    string            `yaml:"category"`
	LeadType    model.LeadType    `yaml:"lead_type"`
	BaseURL     string            `yaml:"base_url"`
	Path        string            `yaml:"path"`
	QueryParam  string            `yaml:"query_param"`
	ExtraParams map[string]string `yaml:"extra_params"`

	// Queries are the search terms sent. Empty means the first MaxQueries
	// configured keywords.
	Queries    []string `yaml:"queries"`
	MaxQueries int      `yaml:"max_queries"`

	// TitleTemplate and DescriptionTemplate rewrite the scraped fields.
	// Placeholders: {title} {organization} {city} {text}.
	TitleTemplate       string `yaml:"title_template"`
	DescriptionTemplate string `yaml:"description_template"`

	// OrganizationFromTitle uses the scraped title as the organization name.
	OrganizationFromTitle bool `yaml:"organization_from_title"`

	// RequireOrganization drops items without an organization name.
	RequireOrganization bool `yaml:"require_organization"`

	// RequireKeywords drops items matching none of the configured keywords.
	RequireKeywords bool `yaml:"require_keywords"`

	// FixedKeywords replaces keyword matching for sources whose queries are
	// already on topic.
	FixedKeywords []string `yaml:"fixed_keywords"`

	Selectors Selectors `yaml:"selectors"`
	Patterns  Patterns  `yaml:"patterns"`
}

// Validate checks that the spec can produce requests and items.
func (s BoardSpec) Validate() error {
	if s.Name == "" {
		return eris.New("board: name is required")
	}
	if _, err := ParseCategory(s.Category); err != nil {
		return eris.Wrapf(err, "board %s", s.Name)
	}
	if !s.LeadType.Valid() {
		return eris.Errorf("board %s: invalid lead_type %q", s.Name, s.LeadType)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return eris.Errorf("board %s: invalid base_url %q", s.Name, s.BaseURL)
	}
	if s.QueryParam == "" {
		return eris.Errorf("board %s: query_param is required", s.Name)
	}
	if len(s.Selectors.Items) == 0 || len(s.Selectors.Title) == 0 {
		return eris.Errorf("board %s: items and title selectors are required", s.Name)
	}
	for _, p := range []string{s.Patterns.Date, s.Patterns.Budget, s.Patterns.Phone} {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return eris.Wrapf(err, "board %s: pattern %q", s.Name, p)
		}
	}
	return nil
}

// Board scrapes a search results page for each query.
type Board struct {
	spec     BoardSpec
	category Category
	fetch    fetcher.Fetcher
	opts     Options

	datePattern   *regexp.Regexp
	budgetPattern *regexp.Regexp
	phonePattern  *regexp.Regexp
}

// NewBoard builds a connector from spec.
func NewBoard(spec BoardSpec, f fetcher.Fetcher, opts Options) (*Board, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	cat, _ := ParseCategory(spec.Category)
	b := &Board{spec: spec, category: cat, fetch: f, opts: opts.withDefaults()}
	b.datePattern = compileOptional(spec.Patterns.Date)
	b.budgetPattern = compileOptional(spec.Patterns.Budget)
	b.phonePattern = compileOptional(spec.Patterns.Phone)
	return b, nil
}

func compileOptional(p string) *regexp.Regexp {
	if p == "" {
		return nil
	}
	return regexp.MustCompile(p)
}

func (b *Board) Name() string       { return b.spec.Name }
func (b *Board) Category() Category { return b.category }
func (b *Board) Country() string    { return b.spec.Country }
func (b *Board) URL() string        { return strings.TrimRight(b.spec.BaseURL, "/") + b.spec.Path }

func (b *Board) queries() []string {
	if len(b.spec.Queries) > 0 {
		return b.spec.Queries
	}
	n := b.spec.MaxQueries
	if n <= 0 {
		n = 5
	}
	return b.opts.Keywords[:min(n, len(b.opts.Keywords))]
}

// Fetch runs every query, stopping once q.MaxResults records are collected.
func (b *Board) Fetch(ctx context.Context, q Query) ([]model.RawLeadRecord, error) {
	log := zap.L().With(zap.String("source", b.Name()))
	queries := b.queries()

	var (
		records []model.RawLeadRecord
		failed  int
		lastErr error
	)
	for i, query := range queries {
		if i > 0 {
			if err := sleepCtx(ctx, b.opts.Delay); err != nil {
				return records, eris.Wrapf(err, "%s: cancelled", b.Name())
			}
		}

		params := url.Values{b.spec.QueryParam: {query}}
		for k, v := range b.spec.ExtraParams {
			params.Set(k, v)
		}
		body, err := b.fetch.Fetch(ctx, fetcher.Request{URL: b.URL(), Params: params, Timeout: b.opts.RequestTimeout})
		if err != nil {
			failed++
			lastErr = err
			log.Warn("board request failed", zap.String("query", query), zap.Error(err))
			continue
		}

		page, err := b.parse(body, query, q.MaxResults-len(records))
		if err != nil {
			failed++
			lastErr = err
			log.Warn("board page unreadable", zap.String("query", query), zap.Error(err))
			continue
		}
		records = append(records, page...)
		if q.MaxResults > 0 && len(records) >= q.MaxResults {
			break
		}
	}

	if len(queries) > 0 && failed == len(queries) {
		return nil, eris.Wrapf(lastErr, "%s: all %d requests failed", b.Name(), failed)
	}
	log.Debug("board fetched", zap.Int("records", len(records)))
	return records, nil
}

// parse extracts up to limit records from one results page. A limit <= 0
// means no limit.
func (b *Board) parse(body []byte, query string, limit int) ([]model.RawLeadRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	var items *goquery.Selection
	for _, sel := range b.spec.Selectors.Items {
		if found := doc.Find(sel); found.Length() > 0 {
			items = found
			break
		}
	}
	if items == nil {
		return nil, nil
	}

	var out []model.RawLeadRecord
	items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if rec, ok := b.record(item, query); ok {
			out = append(out, rec)
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

func (b *Board) record(item *goquery.Selection, query string) (model.RawLeadRecord, bool) {
	sel := b.spec.Selectors
	itemHTML, _ := goquery.OuterHtml(item)
	text := cleanText(itemHTML)

	title := firstText(item, sel.Title)
	if title == "" {
		return model.RawLeadRecord{}, false
	}

	keywords := b.spec.FixedKeywords
	if len(keywords) == 0 {
		keywords = MatchKeywords(title+" "+text, b.opts.Keywords)
		if b.spec.RequireKeywords && len(keywords) == 0 {
			return model.RawLeadRecord{}, false
		}
	}

	org := firstText(item, sel.Organization)
	if b.spec.OrganizationFromTitle {
		org = title
	}
	if b.spec.RequireOrganization && org == "" {
		return model.RawLeadRecord{}, false
	}

	cityText := firstText(item, sel.City)
	city := ExtractCity(cityText)
	switch {
	case city != "":
	case b.category == TenderBoard:
		city = ExtractCity(title)
	case b.category == Directory:
		city = b.spec.Country
	}

	href := firstAttr(item, orDefault(sel.Link, "a[href]"), "href")
	if href == "" && item.Is("a") {
		href, _ = item.Attr("href")
	}
	link := resolveURL(b.spec.BaseURL, href)

	rec := model.RawLeadRecord{
		Source:           b.Name(),
		LeadType:         b.spec.LeadType,
		Title:            title,
		Description:      text,
		OrganizationName: org,
		Phone:            b.phone(item, text),
		Website:          resolveURL(b.spec.BaseURL, firstAttr(item, sel.Website, "href")),
		City:             city,
		Country:          b.spec.Country,
		SourceURL:        link,
		Keywords:         keywords,
		RawMetadata: map[string]any{
			"query":        query,
			"html_snippet": truncateRunes(itemHTML, 500),
		},
	}
	if b.spec.LeadType == model.LeadTypeTender {
		rec.MarketURL = link
		rec.MarketDate = b.date(item, text)
		rec.Budget = b.budget(item, text)
	}

	vars := strings.NewReplacer("{title}", title, "{organization}", org, "{city}", cityText, "{text}", text)
	if b.spec.TitleTemplate != "" {
		rec.Title = strings.TrimSpace(vars.Replace(b.spec.TitleTemplate))
	}
	if b.spec.DescriptionTemplate != "" {
		rec.Description = strings.TrimSpace(vars.Replace(b.spec.DescriptionTemplate))
	}
	return rec, true
}

func (b *Board) phone(item *goquery.Selection, text string) string {
	if p := firstText(item, b.spec.Selectors.Phone); p != "" {
		return p
	}
	if b.phonePattern != nil {
		return b.phonePattern.FindString(text)
	}
	return ""
}

func (b *Board) date(item *goquery.Selection, text string) *time.Time {
	for _, s := range b.spec.Selectors.Date {
		found := item.Find(s).First()
		if found.Length() == 0 {
			continue
		}
		if dt, ok := found.Attr("datetime"); ok {
			if d := ParseDate(dt); d != nil {
				return d
			}
		}
		if d := ParseDate(found.Text()); d != nil {
			return d
		}
	}
	if b.datePattern != nil {
		return ParseDate(b.datePattern.FindString(text))
	}
	return nil
}

func (b *Board) budget(item *goquery.Selection, text string) *float64 {
	if s := firstText(item, b.spec.Selectors.Budget); s != "" {
		return ParseBudget(s)
	}
	if b.budgetPattern != nil {
		if m := b.budgetPattern.FindString(text); m != "" {
			return ParseBudget(m)
		}
	}
	return nil
}

func firstText(item *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		found := item.Find(s).First()
		if found.Length() == 0 {
			continue
		}
		h, _ := goquery.OuterHtml(found)
		if t := cleanText(h); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(item *goquery.Selection, selectors []string, attr string) string {
	for _, s := range selectors {
		if v, ok := item.Find(s).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func orDefault(v []string, def string) []string {
	if len(v) == 0 {
		return []string{def}
	}
	return v
}
