package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-pipeline/internal/model"
)

func TestExamples_AllCountries(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	e := NewExamples(func() time.Time { return now })

	recs, err := e.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	hospital := recs[0]
	assert.Equal(t, model.LeadTypeTender, hospital.LeadType)
	assert.Equal(t, "https://example.com/marche-123", hospital.SourceURL)
	require.NotNil(t, hospital.Budget)
	assert.InDelta(t, 2_500_000, *hospital.Budget, 0.01)
	require.NotNil(t, hospital.MarketDate)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), *hospital.MarketDate)

	paris := recs[1]
	assert.Equal(t, "France", paris.Country)
	assert.Equal(t, time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC), *paris.MarketDate)

	firm := recs[2]
	assert.Equal(t, model.LeadTypeCompany, firm.LeadType)
	assert.Equal(t, "https://example.com/techbatiment", firm.Website)
}

func TestExamples_FiltersByCountry(t *testing.T) {
	e := NewExamples(nil)

	recs, err := e.Fetch(context.Background(), Query{Countries: []string{"france"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Mairie de Paris", recs[0].OrganizationName)

	recs, err = e.Fetch(context.Background(), Query{Countries: []string{"Canada"}})
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = e.Fetch(context.Background(), Query{Countries: []string{"Morocco"}, MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestExamples_Deterministic(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	a, _ := NewExamples(now).Fetch(context.Background(), Query{})
	b, _ := NewExamples(now).Fetch(context.Background(), Query{})
	assert.Equal(t, a, b)
	assert.Equal(t, "examples", NewExamples(nil).Name())
	assert.Equal(t, Fixture, NewExamples(nil).Category())
}
