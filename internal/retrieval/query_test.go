package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileQueryDeterministic(t *testing.T) {
	t.Parallel()

	q := Query{Keyword: "elon musk twitter", Years: []int{2020, 2023}, Location: "us"}
	first, err := CompileQuery(q, 10)
	require.NoError(t, err)
	second, err := CompileQuery(q, 10)
	require.NoError(t, err)
	require.Equal(t, first.Encode(), second.Encode())
}

func TestCompileQueryBaseParameters(t *testing.T) {
	t.Parallel()

	params, err := CompileQuery(Query{Keyword: "harvest"}, 50)
	require.NoError(t, err)

	encoded := params.Encode()
	require.True(t, strings.HasPrefix(encoded, "keyword=harvest&"), encoded)
	require.Equal(t, "page,obituary,marriage,birth,enslavement", params.Get("entity-types"))
	require.Equal(t, "*", params.Cursor())
	require.Equal(t, "50", params.Get("count"))
	require.Equal(t, "score-desc", params.Get("sort"))
	require.Equal(t, "true", params.Get("include-publication-metadata"))
	require.Empty(t, params.Get("date"))
	require.Empty(t, params.Get("country"))
}

func TestCompileQuerySingleYearNarrowsFacets(t *testing.T) {
	t.Parallel()

	params, err := CompileQuery(Query{Keyword: "test", Years: []int{2023}}, 10)
	require.NoError(t, err)
	require.Equal(t, "2023", params.Get("date"))
	require.Equal(t, "12", params.Get("facet-year-month"))
	require.Equal(t, "365", params.Get("facet-year-month-day"))
	require.Equal(t, "true", params.Get("disable-multi-select-facets"))
	require.Empty(t, params.Get("date-start"))
}

func TestCompileQueryRangeSetsBounds(t *testing.T) {
	t.Parallel()

	params, err := CompileQuery(Query{Keyword: "test", Years: []int{1918, 1920}}, 10)
	require.NoError(t, err)
	require.Equal(t, "1918", params.Get("date-start"))
	require.Equal(t, "1920", params.Get("date-end"))
	require.Empty(t, params.Get("date"))
	require.Empty(t, params.Get("facet-year-month"))
}

func TestCompileQueryLocationForms(t *testing.T) {
	t.Parallel()

	params, err := CompileQuery(Query{Keyword: "test", Location: "US"}, 10)
	require.NoError(t, err)
	require.Equal(t, "us", params.Get("country"))
	require.Empty(t, params.Get("region"))

	params, err = CompileQuery(Query{Keyword: "test", Location: "us-ny"}, 10)
	require.NoError(t, err)
	require.Equal(t, "us-ny", params.Get("region"))
	require.Empty(t, params.Get("country"))
}

func TestCompileQueryInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		q    Query
	}{
		{"empty keyword", Query{Keyword: "   "}},
		{"start after end", Query{Keyword: "x", Years: []int{1950, 1940}}},
		{"three years", Query{Keyword: "x", Years: []int{1940, 1950, 1960}}},
		{"malformed location", Query{Keyword: "x", Location: "new york"}},
		{"negative max pages", Query{Keyword: "x", MaxPages: -1}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			params, err := CompileQuery(tc.q, 10)
			require.Nil(t, params)
			require.Equal(t, KindInvalidQuery, KindOf(err))
		})
	}
}

func TestParamsSetCursorMutatesInPlace(t *testing.T) {
	t.Parallel()

	params, err := CompileQuery(Query{Keyword: "test"}, 10)
	require.NoError(t, err)
	before := params.Encode()

	params.SetCursor("next-token-123")
	require.Equal(t, "next-token-123", params.Cursor())
	require.NotEqual(t, before, params.Encode())
	require.Contains(t, params.Encode(), "start=next-token-123")
}
