package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/fetcher"
	"github.com/sells-group/lead-pipeline/internal/model"
)

// FeedSpec describes an RSS tender feed.
type FeedSpec struct {
	Name     string         `yaml:"name"`
	Country  string         `yaml:"country"`
	URL      string         `yaml:"url"`
	LeadType model.LeadType `yaml:"lead_type"`
}

// Validate checks the feed has a name and an absolute URL.
func (s FeedSpec) Validate() error {
	if s.Name == "" {
		return eris.New("feed: name is required")
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return eris.Errorf("feed %s: invalid url %q", s.Name, s.URL)
	}
	if s.LeadType != "" && !s.LeadType.Valid() {
		return eris.Errorf("feed %s: invalid lead_type %q", s.Name, s.LeadType)
	}
	return nil
}

// Feed streams an RSS document and keeps items matching the keywords.
type Feed struct {
	spec  FeedSpec
	fetch fetcher.Fetcher
	opts  Options
}

// NewFeed creates a feed connector. Lead type defaults to public tender.
func NewFeed(spec FeedSpec, f fetcher.Fetcher, opts Options) *Feed {
	if spec.LeadType == "" {
		spec.LeadType = model.LeadTypeTender
	}
	return &Feed{spec: spec, fetch: f, opts: opts.withDefaults()}
}

func (f *Feed) Name() string       { return f.spec.Name }
func (f *Feed) Category() Category { return TenderBoard }
func (f *Feed) Country() string    { return f.spec.Country }
func (f *Feed) URL() string        { return f.spec.URL }

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

var pubDateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return ParseDate(s)
}

// Fetch downloads the feed and converts relevant items.
func (f *Feed) Fetch(ctx context.Context, q Query) ([]model.RawLeadRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.RequestTimeout)
	defer cancel()

	body, err := f.fetch.Download(ctx, f.spec.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: download", f.Name())
	}
	defer body.Close() //nolint:errcheck

	items, errs := fetcher.StreamXML[rssItem](ctx, body, "item")

	var out []model.RawLeadRecord
	for item := range items {
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			continue // drain so the decoder goroutine can finish
		}
		if rec, ok := f.record(item); ok {
			out = append(out, rec)
		}
	}
	if err := <-errs; err != nil {
		if len(out) == 0 {
			return nil, eris.Wrapf(err, "%s: parse", f.Name())
		}
		zap.L().Warn("feed truncated", zap.String("source", f.Name()), zap.Error(err))
	}
	return out, nil
}

func (f *Feed) record(item rssItem) (model.RawLeadRecord, bool) {
	title := cleanText(item.Title)
	if title == "" {
		return model.RawLeadRecord{}, false
	}
	desc := cleanText(item.Description)

	keywords := MatchKeywords(title+" "+desc+" "+strings.Join(item.Categories, " "), f.opts.Keywords)
	if len(keywords) == 0 {
		return model.RawLeadRecord{}, false
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}

	rec := model.RawLeadRecord{
		Source:      f.Name(),
		LeadType:    f.spec.LeadType,
		Title:       title,
		Description: desc,
		City:        ExtractCity(title + " " + desc),
		Country:     f.spec.Country,
		SourceURL:   link,
		Keywords:    keywords,
		RawMetadata: map[string]any{"categories": item.Categories, "pub_date": item.PubDate},
	}
	if rec.LeadType == model.LeadTypeTender {
		rec.MarketURL = link
		rec.MarketDate = parsePubDate(item.PubDate)
		rec.Budget = ParseBudget(budgetSnippet(desc))
	}
	return rec, true
}

// budgetSnippet returns the text following a budget label, or "".
func budgetSnippet(desc string) string {
	lower := strings.ToLower(desc)
	for _, label := range []string{"montant", "budget", "valeur estimée", "estimated value"} {
		if i := strings.Index(lower, label); i >= 0 {
			return lower[i+len(label):]
		}
	}
	return ""
}
