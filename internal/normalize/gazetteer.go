package normalize

import "strings"

type alias struct {
	match     string // folded substring
	canonical string
}

// cityAliases is checked in order; the first folded substring hit wins.
var cityAliases = []alias{
	{"casablanca", "Casablanca"},
	{"rabat", "Rabat"},
	{"fes", "Fès"},
	{"marrakech", "Marrakech"},
	{"tanger", "Tanger"},
	{"agadir", "Agadir"},
	{"paris", "Paris"},
	{"lyon", "Lyon"},
	{"marseille", "Marseille"},
	{"montreal", "Montréal"},
	{"toronto", "Toronto"},
	{"vancouver", "Vancouver"},
}

var countryAliases = []alias{
	{"maroc", "Maroc"},
	{"morocco", "Maroc"},
	{"france", "France"},
	{"canada", "Canada"},
}

// DefaultCountry is assigned when a record carries no country.
const DefaultCountry = "Maroc"

// City maps a free-text city through the gazetteer, falling back to title case.
func City(s string) string {
	s = collapseSpaces(s)
	if s == "" {
		return ""
	}
	if c, ok := lookup(cityAliases, s); ok {
		return c
	}
	return titleCase(s)
}

// Country maps a free-text country through the gazetteer. Empty input
// yields DefaultCountry.
func Country(s string) string {
	s = collapseSpaces(s)
	if s == "" {
		return DefaultCountry
	}
	if c, ok := lookup(countryAliases, s); ok {
		return c
	}
	return titleCase(s)
}

func lookup(table []alias, s string) (string, bool) {
	folded := Fold(s)
	for _, a := range table {
		if strings.Contains(folded, a.match) {
			return a.canonical, true
		}
	}
	return "", false
}
