package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/fetcher"
	"github.com/sells-group/lead-pipeline/internal/model"
	"github.com/sells-group/lead-pipeline/internal/normalize"
)

// OverpassEndpoint is the public Overpass API interpreter.
const OverpassEndpoint = "https://overpass-api.de/api/interpreter"

// overpassAreas maps countries to their OSM boundary relation ids.
var overpassAreas = map[string]int64{
	"Maroc":  1473948,
	"France": 2202162,
	"Canada": 1428125,
}

// OverpassCountries lists the countries with a known boundary relation.
func OverpassCountries() []string {
	return []string{"Maroc", "France", "Canada"}
}

var overpassNameTerms = []string{"gtb", "gtc", "bms", "électricité", "électrique", "bâtiment", "building", "technique"}

var overpassTagTerms = []string{"gtb", "gtc", "bms"}

// Overpass finds engineering offices and electricians tagged in
// OpenStreetMap within one country.
type Overpass struct {
	country  string
	endpoint string
	fetch    fetcher.Fetcher
	opts     Options
}

// NewOverpass creates an Overpass connector for country. Unknown countries
// fall back to the Morocco boundary.
func NewOverpass(country string, f fetcher.Fetcher, opts Options) *Overpass {
	return &Overpass{
		country:  normalize.Country(country),
		endpoint: OverpassEndpoint,
		fetch:    f,
		opts:     opts.withDefaults(),
	}
}

// WithEndpoint points the connector at another interpreter.
func (o *Overpass) WithEndpoint(endpoint string) *Overpass {
	o.endpoint = endpoint
	return o
}

func (o *Overpass) Name() string {
	code := map[string]string{"Maroc": "ma", "France": "fr", "Canada": "ca"}[o.country]
	if code == "" {
		code = strings.ToLower(normalize.Fold(o.country))
	}
	return "overpass_" + code
}

func (o *Overpass) Category() Category { return OpenData }
func (o *Overpass) Country() string    { return o.country }
func (o *Overpass) URL() string        { return o.endpoint }

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// query builds the Overpass QL request for the connector's country.
func (o *Overpass) query() string {
	rel, ok := overpassAreas[o.country]
	if !ok {
		rel = overpassAreas["Maroc"]
	}
	area := fmt.Sprintf("relation(%d);", rel)
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, filter := range []string{`["office"="engineering"]`, `["craft"="electrician"]`} {
		for _, kind := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&b, "  %s%s(%s);\n", kind, filter, area)
		}
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// Fetch posts the query and converts matching elements into company records.
func (o *Overpass) Fetch(ctx context.Context, q Query) ([]model.RawLeadRecord, error) {
	body, err := o.fetch.Fetch(ctx, fetcher.Request{
		URL:     o.endpoint,
		Form:    url.Values{"data": {o.query()}},
		Timeout: max(o.opts.RequestTimeout, 30*time.Second),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "%s: query", o.Name())
	}

	resp, err := fetcher.DecodeJSON[overpassResponse](body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: decode", o.Name())
	}

	var out []model.RawLeadRecord
	for _, el := range resp.Elements {
		rec, ok := o.record(el)
		if !ok {
			continue
		}
		out = append(out, rec)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	zap.L().Debug("overpass fetched",
		zap.String("source", o.Name()),
		zap.Int("elements", len(resp.Elements)),
		zap.Int("records", len(out)),
	)
	return out, nil
}

func (o *Overpass) record(el overpassElement) (model.RawLeadRecord, bool) {
	name := strings.TrimSpace(el.Tags["name"])
	if name == "" || !relevantElement(name, el.Tags) {
		return model.RawLeadRecord{}, false
	}

	kind := el.Type
	if kind == "" {
		kind = "node"
	}

	lat, lon := el.Lat, el.Lon
	if lat == nil && el.Center != nil {
		lat, lon = &el.Center.Lat, &el.Center.Lon
	}

	city := firstTag(el.Tags, "addr:city", "addr:place", "addr:suburb")
	if city == "" {
		city = o.country
	}

	return model.RawLeadRecord{
		Source:           o.Name(),
		LeadType:         model.LeadTypeCompany,
		Title:            "Company " + name,
		Description:      strings.TrimSpace("Company found via OpenStreetMap: " + el.Tags["description"]),
		OrganizationName: name,
		Website:          firstTag(el.Tags, "website", "contact:website"),
		Phone:            firstTag(el.Tags, "phone", "contact:phone"),
		Email:            firstTag(el.Tags, "email", "contact:email"),
		City:             city,
		Country:          o.country,
		SourceURL:        fmt.Sprintf("https://www.openstreetmap.org/%s/%d", kind, el.ID),
		Keywords:         []string{"GTB", "GTEB"},
		RawMetadata: map[string]any{
			"osm_id":      el.ID,
			"osm_type":    kind,
			"tags":        el.Tags,
			"coordinates": map[string]any{"lat": lat, "lon": lon},
		},
	}, true
}

// relevantElement keeps elements whose name mentions the trade, or whose
// tags mention building management explicitly.
func relevantElement(name string, tags map[string]string) bool {
	for _, term := range overpassNameTerms {
		if normalize.ContainsFolded(name, term) {
			return true
		}
	}
	var all strings.Builder
	for k, v := range tags {
		all.WriteString(k + "=" + v + " ")
	}
	for _, term := range overpassTagTerms {
		if normalize.ContainsFolded(all.String(), term) {
			return true
		}
	}
	return false
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}
