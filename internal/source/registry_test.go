package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-pipeline/internal/model"
)

type stubConnector struct {
	name    string
	country string
}

func (s stubConnector) Name() string       { return s.name }
func (s stubConnector) Category() Category { return TenderBoard }
func (s stubConnector) Country() string    { return s.country }
func (s stubConnector) URL() string        { return "https://" + s.name + ".example" }
func (s stubConnector) Fetch(context.Context, Query) ([]model.RawLeadRecord, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubConnector{name: "boamp", country: "France"})
	r.Register(stubConnector{name: "merx", country: "Canada"})
	r.Register(stubConnector{name: "boamp", country: "France"})

	assert.Equal(t, []string{"boamp", "merx"}, r.AllNames())
	assert.Len(t, r.All(), 2)

	c, err := r.Get("merx")
	require.NoError(t, err)
	assert.Equal(t, "Canada", c.Country())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_Select(t *testing.T) {
	r := NewRegistry()
	r.Register(stubConnector{name: "boamp", country: "France"})
	r.Register(stubConnector{name: "marches_ma", country: "Maroc"})
	r.Register(stubConnector{name: "merx", country: "Canada"})
	r.Register(stubConnector{name: "global"})

	names := func(cs []Connector) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name())
		}
		return out
	}

	got, err := r.Select([]string{"morocco", "FRANCE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"boamp", "marches_ma", "global"}, names(got))

	got, err = r.Select(nil, nil)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = r.Select([]string{"Canada"}, []string{"boamp", "merx"})
	require.NoError(t, err)
	assert.Equal(t, []string{"merx"}, names(got))

	_, err = r.Select(nil, []string{"nope"})
	assert.Error(t, err)
}
