package eval

import (
	"strings"
)

type AliasResolver interface {
	Resolve(name string) (string, error)
	Aliases() []string
}

// SelectModels expands "all" (or an empty selection) to every registered
// alias and otherwise validates a comma-separated list. The first unknown
// name fails the whole selection. Duplicates keep their first position.
func SelectModels(reg AliasResolver, selection string) ([]string, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" || strings.EqualFold(selection, "all") {
		return reg.Aliases(), nil
	}
	var out []string
	seen := map[string]bool{}
	for _, name := range strings.Split(selection, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if _, err := reg.Resolve(name); err != nil {
			return nil, err
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}
