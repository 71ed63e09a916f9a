package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-pipeline/internal/model"
)

func TestWriteArgsMatchColumns(t *testing.T) {
	args, err := writeArgs(sampleLead("T", "O", 1))
	require.NoError(t, err)
	assert.Len(t, args, len(writeColumns))
	assert.Equal(t, "t", args[len(args)-2])
	assert.Equal(t, "o", args[len(args)-1])
}

func TestWriteArgsNullables(t *testing.T) {
	l := sampleLead("T", "O", 1)
	l.MarketDate, l.Budget = nil, nil
	args, err := writeArgs(l)
	require.NoError(t, err)
	assert.Nil(t, args[11])
	assert.Nil(t, args[12])
	assert.Nil(t, args[28])
}

func TestInsertSQL(t *testing.T) {
	q := insertSQL(dollar)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO leads (id, source,"))
	assert.Contains(t, q, "$31)")

	assert.Equal(t, len(writeColumns), strings.Count(insertSQL(question), "?"))
}

func TestUpdateSQL(t *testing.T) {
	q := updateSQL(dollar)
	assert.True(t, strings.HasSuffix(q, "WHERE id = $1"))
	assert.Contains(t, q, "source = $2")
	assert.NotContains(t, q, "created_at =")
	assert.Contains(t, q, "org_key = $30")

	args, err := updateArgs(&model.Lead{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", args[0])
	assert.Len(t, args, 30)

	assert.True(t, strings.HasSuffix(updateSQL(numbered), "WHERE id = ?1"))
}

func TestListSQL(t *testing.T) {
	tests := []struct {
		name     string
		filter   LeadFilter
		ph       placeholder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "defaults",
			ph:       dollar,
			wantSQL:  " FROM leads ORDER BY score DESC, created_at DESC LIMIT $1",
			wantArgs: []any{100},
		},
		{
			name:     "all filters",
			filter:   LeadFilter{Temperature: model.TemperatureHot, Country: "Maroc", ProjectType: model.ProjectGTB, MinScore: 40, Limit: 5, Offset: 10},
			ph:       dollar,
			wantSQL:  " FROM leads WHERE temperature = $1 AND country = $2 AND project_type = $3 AND score >= $4 ORDER BY score DESC, created_at DESC LIMIT $5 OFFSET $6",
			wantArgs: []any{"hot", "Maroc", "GTB", 40, 5, 10},
		},
		{
			name:     "question marks",
			filter:   LeadFilter{Country: "France"},
			ph:       question,
			wantSQL:  " FROM leads WHERE country = ? ORDER BY score DESC, created_at DESC LIMIT ?",
			wantArgs: []any{"France", 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listSQL(tt.filter, tt.ph)
			assert.True(t, strings.HasSuffix(q, tt.wantSQL), q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
