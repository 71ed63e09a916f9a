package source

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/sells-group/lead-pipeline/internal/normalize"
)

// knownCities lists the cities recognized in free text, per country.
var knownCities = map[string][]string{
	"Maroc":  {"Casablanca", "Rabat", "Fès", "Marrakech", "Tanger", "Agadir", "Meknès", "Oujda"},
	"France": {"Paris", "Lyon", "Marseille", "Toulouse", "Nice", "Nantes", "Strasbourg", "Montpellier", "Bordeaux"},
	"Canada": {"Montréal", "Toronto", "Vancouver", "Ottawa", "Calgary", "Edmonton", "Winnipeg"},
}

var cityCountryOrder = []string{"Maroc", "France", "Canada"}

// ExtractCity finds a known city in text. Failing that it returns the first
// capitalized alphabetic word longer than three letters, or "".
func ExtractCity(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	words := strings.FieldsFunc(normalize.Fold(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, country := range cityCountryOrder {
		for _, city := range knownCities[country] {
			if slices.Contains(words, normalize.Fold(city)) {
				return city
			}
		}
	}
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(first) && isAlpha(w) {
			return w
		}
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006", "02/01/06"}

// ParseDate reads a day-first or ISO date from the start of s. It returns
// nil when no layout matches.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

var budgetRe = regexp.MustCompile(`(?i)(\d(?:[\d.,]|[ \x{00a0}\x{202f}]\d)*)\s*(millions?|milliers?|m\b|k\b)?`)

// ParseBudget extracts the first amount in s, honoring M/million and
// K/millier multipliers. Spaces, dots and commas are accepted as thousands
// separators; a single trailing group of one or two digits is a decimal part.
func ParseBudget(s string) *float64 {
	m := budgetRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, ok := parseAmount(m[1])
	if !ok {
		return nil
	}
	switch unit := strings.ToLower(m[2]); {
	case strings.HasPrefix(unit, "m"):
		v *= 1_000_000
	case strings.HasPrefix(unit, "k"):
		v *= 1_000
	}
	return &v
}

func parseAmount(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, ".,")

	// The last separator is a decimal point when followed by one or two digits.
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 <= 2 {
		s = strings.NewReplacer(".", "", ",", "").Replace(s[:i]) + "." + s[i+1:]
	} else {
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MatchKeywords returns the keywords found in text, ignoring case and
// accents, in keyword order.
func MatchKeywords(text string, keywords []string) []string {
	folded := normalize.Fold(text)
	var out []string
	for _, kw := range keywords {
		k := normalize.Fold(strings.TrimSpace(kw))
		if k != "" && strings.Contains(folded, k) {
			out = append(out, kw)
		}
	}
	return out
}

var strictPolicy = bluemonday.StrictPolicy()

// cleanText strips markup from an HTML fragment and collapses whitespace.
func cleanText(fragment string) string {
	text := html.UnescapeString(strictPolicy.Sanitize(fragment))
	return strings.Join(strings.Fields(text), " ")
}

// resolveURL makes href absolute against base. Unparseable input yields "".
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sleepCtx waits for d or until ctx ends, returning ctx.Err() in the latter case.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
