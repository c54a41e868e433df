package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock| OpenAI:key1 ,groq|openai:key1")
	require.Equal(t, []ProviderRef{
		{Raw: "mock", Name: "mock"},
		{Raw: "openai:key1", Name: "openai", KeyAlias: "key1"},
		{Raw: "groq", Name: "groq"},
	}, refs)
}

func TestParseProviderListEmptyFallsBackToMock(t *testing.T) {
	for _, raw := range []string{"", " | ", ",,", ":orphan"} {
		refs := ParseProviderList(raw)
		require.Equal(t, []ProviderRef{{Raw: "mock", Name: "mock"}}, refs, "input %q", raw)
	}
}
