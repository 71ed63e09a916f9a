package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-pipeline/internal/model"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog_Defaults(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, cat.Boards, 7)
	require.Len(t, cat.Feeds, 1)
	assert.Equal(t, "ted_fr", cat.Feeds[0].Name)
	assert.Equal(t, model.LeadTypeTender, cat.Feeds[0].LeadType)
}

func TestLoadCatalog_MergesFile(t *testing.T) {
	path := writeCatalog(t, `
boards:
  - name: boamp
    country: France
    category: tender_board
    lead_type: public_tender
    base_url: https://mirror.example
    path: /search
    query_param: text
    selectors:
      items: ["li.result"]
      title: ["a"]
  - name: charika
    country: Maroc
    category: directory
    lead_type: company
    base_url: https://www.charika.ma
    path: /recherche
    query_param: q
    queries: ["GTB"]
    title_template: "Company {title}"
    organization_from_title: true
    fixed_keywords: [GTB]
    selectors:
      items: ["div.company"]
      title: ["h2"]
feeds:
  - name: ted_fr
    country: France
    url: https://ted.example/rss
  - name: ted_ma
    country: Maroc
    url: https://ted.example/rss?country=MA
`)
	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Boards, 8)
	assert.Equal(t, "https://mirror.example", cat.Boards[0].BaseURL)
	assert.Equal(t, []string{"li.result"}, cat.Boards[0].Selectors.Items)
	assert.Equal(t, "charika", cat.Boards[7].Name)
	assert.True(t, cat.Boards[7].OrganizationFromTitle)
	require.Len(t, cat.Feeds, 2)
	assert.Equal(t, "ted_fr", cat.Feeds[0].Name)
	assert.Equal(t, "https://ted.example/rss", cat.Feeds[0].URL)
	assert.Equal(t, "ted_ma", cat.Feeds[1].Name)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadCatalog(writeCatalog(t, "boards: [oops"))
	assert.Error(t, err)

	_, err = LoadCatalog(writeCatalog(t, `
boards:
  - name: broken
    category: tender_board
    lead_type: public_tender
    base_url: https://x.example
`))
	assert.Error(t, err)

	_, err = LoadCatalog(writeCatalog(t, `
feeds:
  - name: nourl
`))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	cat := DefaultCatalog()

	reg, err := Build(cat, testFetcher(), testOptions(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"boamp", "marches_publics_ma", "merx", "kerix", "pagesjaunes", "indeed_ma", "indeed_fr",
		"ted_fr", "overpass_ma", "overpass_fr", "overpass_ca", "examples",
	}, reg.AllNames())

	reg, err = Build(cat, testFetcher(), testOptions(), false)
	require.NoError(t, err)
	_, err = reg.Get("examples")
	assert.Error(t, err)

	cat.Boards = append(cat.Boards, BoardSpec{Name: "bad"})
	_, err = Build(cat, testFetcher(), testOptions(), false)
	assert.Error(t, err)
}
