// Package normalize canonicalizes raw lead records: names, places, contact
// fields and the inferred project type. Every function here is pure and
// idempotent.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/lead-pipeline/internal/model"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// legalSuffixes are upper-cased wherever they appear in a company name.
var legalSuffixes = map[string]bool{
	"sa": true, "sarl": true, "sas": true, "sasu": true, "eurl": true,
	"snc": true, "ltd": true, "inc": true, "llc": true,
}

// Normalize returns the canonical form of raw. It never fails: malformed
// fields degrade to blanks.
func Normalize(raw model.RawLeadRecord) model.NormalizedLead {
	out := raw
	out.Title = Truncate(collapseSpaces(raw.Title), model.MaxTitleLen)
	out.Description = Truncate(strings.TrimSpace(raw.Description), model.MaxDescriptionLen)
	out.OrganizationName = Truncate(CompanyName(raw.OrganizationName), model.MaxOrganizationLen)
	out.City = Truncate(City(raw.City), model.MaxCityLen)
	out.Country = Country(raw.Country)
	out.Email = Email(raw.Email)
	out.Phone = Truncate(Phone(raw.Phone), model.MaxPhoneLen)
	out.Website = strings.TrimSpace(raw.Website)
	out.MarketURL = strings.TrimSpace(raw.MarketURL)
	out.SourceURL = strings.TrimSpace(raw.SourceURL)
	out.Keywords = dedupeKeywords(raw.Keywords)
	if !out.LeadType.Valid() {
		out.LeadType = model.LeadTypeCompany
	}

	return model.NormalizedLead{
		RawLeadRecord: out,
		ProjectType:   DetectProjectType(out.Title + " " + out.Description),
	}
}

// CompanyName collapses whitespace, keeps acronyms, upper-cases legal
// suffixes and title-cases every other word.
func CompanyName(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		switch {
		case legalSuffixes[strings.ToLower(w)]:
			words[i] = strings.ToUpper(w)
		case isAcronym(w):
		default:
			words[i] = titleCase(w)
		}
	}
	return strings.Join(words, " ")
}

// isAcronym reports whether w has more than one letter and no lower-case letters.
func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			letters++
		}
	}
	return letters > 1
}

// Email lowercases and validates s, returning "" when invalid.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(s) {
		return ""
	}
	return s
}

// Phone keeps digits and a leading plus; an international "00" prefix
// becomes "+".
func Phone(s string) string {
	s = strings.TrimSpace(s)
	plus := strings.HasPrefix(s, "+")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if plus {
		return "+" + digits
	}
	if strings.HasPrefix(digits, "00") && len(digits) > 2 {
		return "+" + digits[2:]
	}
	return digits
}

func dedupeKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = collapseSpaces(kw)
		key := Fold(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
