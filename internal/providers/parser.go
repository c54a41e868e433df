package providers

import "strings"

// ProviderRef names one configured provider, e.g. "openai:primary" is the
// openai provider using the key stored under OPENAI_API_KEY_PRIMARY.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList reads FINRAG_LLM_PROVIDERS / FINRAG_EMBED_PROVIDERS.
// Entries are separated by '|' or ','; repeated entries are kept once. An
// empty list means the mock provider.
func ParseProviderList(raw string) []ProviderRef {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]ProviderRef, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		name, alias, _ := strings.Cut(strings.TrimSpace(f), ":")
		ref := ProviderRef{
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		if ref.Name == "" {
			continue
		}
		ref.Raw = ref.Name
		if ref.KeyAlias != "" {
			ref.Raw += ":" + ref.KeyAlias
		}
		if seen[ref.Raw] {
			continue
		}
		seen[ref.Raw] = true
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
