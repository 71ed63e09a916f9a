// Package enrich infers the sector and size class of the organization behind
// a lead and backfills a missing contact email from its website.
package enrich

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/fetcher"
	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/normalize"
)

// Options tunes website inspection.
type Options struct {
	WebsiteTimeout time.Duration // size inspection
	EmailTimeout   time.Duration // email backfill when the size inspection did not complete
	CacheTTL       time.Duration
	FetchWebsite   bool
}

// DefaultOptions returns the production inspection settings.
func DefaultOptions() Options {
	return Options{
		WebsiteTimeout: 5 * time.Second,
		EmailTimeout:   10 * time.Second,
		CacheTTL:       24 * time.Hour,
		FetchWebsite:   true,
	}
}

// Enricher adds inferred attributes to normalized leads.
type Enricher struct {
	fetch fetcher.Fetcher
	cache Cache
	opts  Options
}

// New creates an Enricher. A nil cache uses an in-memory cache; a nil
// fetcher disables website inspection.
func New(f fetcher.Fetcher, cache Cache, opts Options) *Enricher {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if f == nil {
		opts.FetchWebsite = false
	}
	return &Enricher{fetch: f, cache: cache, opts: opts}
}

// Enrich infers sector and size class and backfills the email. It never
// fails: inspection errors leave the affected fields at their defaults.
func (e *Enricher) Enrich(ctx context.Context, lead model.NormalizedLead) model.EnrichedLead {
	out := model.EnrichedLead{
		NormalizedLead: lead,
		Sector:         DetectSector(lead.Title, lead.Description, lead.OrganizationName),
		SizeClass:      model.SizeMedium,
	}

	size, ok := SizeFromIndicators(lead.OrganizationName, lead.Description)
	if ok {
		out.SizeClass = size
	} else if info := e.inspect(ctx, lead.Website, e.opts.WebsiteTimeout); info != nil {
		if size, ok := SizeFromLinks(info.Links); ok {
			out.SizeClass = size
		}
	}

	if out.Email == "" && out.Website != "" {
		if info := e.inspect(ctx, out.Website, e.opts.EmailTimeout); info != nil {
			out.Email = pickEmail(info.Emails)
		}
	}
	return out
}

// inspect returns the cached or freshly fetched inspection of website, or
// nil when it is unavailable.
func (e *Enricher) inspect(ctx context.Context, website string, timeout time.Duration) *SiteInfo {
	if !e.opts.FetchWebsite || strings.TrimSpace(website) == "" {
		return nil
	}
	siteURL := SiteURL(website)
	log := zap.L().With(zap.String("component", "enrich"), zap.String("website", siteURL))

	info, err := e.cache.Get(ctx, siteURL)
	if err != nil {
		log.Debug("site cache read failed", zap.Error(err))
	}
	if info != nil {
		return info
	}

	body, err := e.fetch.Fetch(ctx, fetcher.Request{URL: siteURL, Timeout: timeout})
	if err != nil {
		log.Debug("website inspection failed", zap.Error(err))
		return nil
	}
	info, err = InspectPage(body)
	if err != nil {
		log.Debug("website parse failed", zap.Error(err))
		return nil
	}
	if err := e.cache.Set(ctx, siteURL, info, e.opts.CacheTTL); err != nil {
		log.Debug("site cache write failed", zap.Error(err))
	}
	return info
}

// SiteURL prefixes a bare host with https://.
func SiteURL(website string) string {
	website = strings.TrimSpace(website)
	if strings.HasPrefix(strings.ToLower(website), "http") {
		return website
	}
	return "https://" + website
}

var (
	emailRe     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	textPolicy  = bluemonday.StrictPolicy()
	assetSuffix = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}
)

// InspectPage counts the links of an HTML page and collects the email
// addresses in its visible text and mailto links, in document order.
func InspectPage(body []byte) (*SiteInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: parse page")
	}

	info := &SiteInfo{Links: doc.Find("a").Length()}
	seen := make(map[string]bool)
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			return
		}
		seen[key] = true
		info.Emails = append(info.Emails, addr)
	}

	// Tags are separated by a space so adjacent cells do not run together.
	text := textPolicy.Sanitize(strings.ReplaceAll(string(body), "<", " <"))
	for _, m := range emailRe.FindAllString(text, -1) {
		add(m)
	}
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if emailRe.MatchString(addr) {
			add(addr)
		}
	})
	return info, nil
}

var (
	excludedDomains = []string{"example.com", "test.com", "domain.com"}
	genericMarkers  = []string{"noreply", "no-reply", "donotreply"}
)

// pickEmail returns the first usable professional address, normalized.
func pickEmail(candidates []string) string {
	for _, c := range candidates {
		if usableEmail(c) {
			if e := normalize.Email(c); e != "" {
				return e
			}
		}
	}
	return ""
}

func usableEmail(addr string) bool {
	lower := strings.ToLower(addr)
	at := strings.LastIndexByte(lower, '@')
	if at < 0 {
		return false
	}
	domain := lower[at+1:]
	for _, d := range excludedDomains {
		if domain == d {
			return false
		}
	}
	for _, m := range genericMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, s := range assetSuffix {
		if strings.HasSuffix(lower, s) {
			return false
		}
	}
	return true
}
