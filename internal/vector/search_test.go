package vector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSearchSQLWithoutFilters(t *testing.T) {
	sql, args := buildSearchSQL("[1,0]", 8, Filter{})
	require.Equal(t, []any{"[1,0]", 8}, args)
	require.NotContains(t, sql, "ANY(")
	require.NotContains(t, sql, "c.period")
	require.Contains(t, sql, "LIMIT $2")
}

func TestBuildSearchSQLAppliesFiltersBeforeLimit(t *testing.T) {
	sql, args := buildSearchSQL("[1,0]", 4, Filter{Tickers: []string{"AMZN", "AAPL"}, Period: "q3-2025"})
	require.Equal(t, []any{"[1,0]", 4, []string{"AMZN", "AAPL"}, "Q3-2025"}, args)
	require.Contains(t, sql, "upper(c.ticker) = ANY($3)")
	require.Contains(t, sql, "upper(c.period) = $4")

	where := strings.Index(sql, "upper(c.ticker)")
	order := strings.Index(sql, "ORDER BY")
	require.Less(t, where, order)
	require.Contains(t, sql, "ORDER BY c.embedding <=> $1::vector, c.chunk_id")
}

func TestBuildSearchSQLPeriodOnly(t *testing.T) {
	sql, args := buildSearchSQL("[0]", 2, Filter{Period: " Q1-2024 "})
	require.Equal(t, []any{"[0]", 2, "Q1-2024"}, args)
	require.Contains(t, sql, "upper(c.period) = $3")
}

func TestToLiteral(t *testing.T) {
	require.Equal(t, "[]", ToLiteral(nil))
	require.Equal(t, "[0.5,-1,0.25]", ToLiteral([]float32{0.5, -1, 0.25}))
}
