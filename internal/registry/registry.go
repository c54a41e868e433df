package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// JudgeModel grades evaluation answers. It is never one of the models under test by default.
const JudgeModel = "anthropic/claude-opus-4-20250514"

// Price is USD per one million tokens.
type Price struct {
	Input  float64 `yaml:"input" json:"input"`
	Output float64 `yaml:"output" json:"output"`
}

func (p Price) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
}

type Alias struct {
	Name    string `json:"name"`
	ModelID string `json:"model_id"`
}

type ModelNotFoundError struct {
	Name  string
	Known []string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("unknown model: %s. Available models: [%s]", e.Name, strings.Join(e.Known, ", "))
}

// Registry is read-only once built and safe for concurrent use.
type Registry struct {
	aliases []Alias
	byName  map[string]string
	prices  map[string]Price
	judge   string
}

func Default() *Registry {
	r := &Registry{
		byName: map[string]string{},
		prices: map[string]Price{},
		judge:  JudgeModel,
	}
	for _, a := range []Alias{
		{"claude-sonnet", "anthropic/claude-sonnet-4-20250514"},
		{"claude-opus", "anthropic/claude-opus-4-20250514"},
		{"gpt-4o", "openai/gpt-4o"},
		{"gpt-4.1", "openai/gpt-4.1"},
		{"gpt-4.1-codex", "openai/codex-mini"},
		{"gemini-pro", "google/gemini-2.5-pro-preview"},
		{"qwen-plus", "qwen/qwen-plus"},
		{"kimi-k2", "moonshotai/kimi-k2"},
	} {
		r.setAlias(a.Name, a.ModelID)
	}
	r.prices["anthropic/claude-sonnet-4-20250514"] = Price{3.0, 15.0}
	r.prices["anthropic/claude-opus-4-20250514"] = Price{15.0, 75.0}
	r.prices["openai/gpt-4o"] = Price{2.5, 10.0}
	r.prices["openai/gpt-4.1"] = Price{2.0, 8.0}
	r.prices["openai/codex-mini"] = Price{1.5, 6.0}
	r.prices["google/gemini-2.5-pro-preview"] = Price{1.25, 10.0}
	r.prices["qwen/qwen-plus"] = Price{0.5, 2.0}
	r.prices["moonshotai/kimi-k2"] = Price{0.6, 2.4}
	return r
}

type overlayFile struct {
	Judge  string `yaml:"judge"`
	Models []struct {
		Alias string `yaml:"alias"`
		ID    string `yaml:"id"`
		Price *Price `yaml:"price"`
	} `yaml:"models"`
	Prices map[string]Price `yaml:"prices"`
}

// Load returns the built-in registry with the YAML file at path applied on top.
// An empty path yields the built-in registry.
func Load(path string) (*Registry, error) {
	r := Default()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry: %w", err)
	}
	if err := r.apply(b); err != nil {
		return nil, fmt.Errorf("model registry %s: %w", path, err)
	}
	return r, nil
}

func (r *Registry) apply(b []byte) error {
	var f overlayFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	if j := strings.TrimSpace(f.Judge); j != "" {
		r.judge = j
	}
	for i, m := range f.Models {
		alias, id := strings.TrimSpace(m.Alias), strings.TrimSpace(m.ID)
		if alias == "" || id == "" {
			return fmt.Errorf("models[%d]: alias and id are required", i)
		}
		if strings.Contains(alias, "/") {
			return fmt.Errorf("models[%d]: alias %q must not contain '/'", i, alias)
		}
		r.setAlias(alias, id)
		if m.Price != nil {
			r.prices[id] = *m.Price
		}
	}
	for id, p := range f.Prices {
		r.prices[strings.TrimSpace(id)] = p
	}
	return nil
}

func (r *Registry) setAlias(name, id string) {
	if _, ok := r.byName[name]; !ok {
		r.aliases = append(r.aliases, Alias{Name: name, ModelID: id})
	} else {
		for i := range r.aliases {
			if r.aliases[i].Name == name {
				r.aliases[i].ModelID = id
			}
		}
	}
	r.byName[name] = id
}

// Resolve maps an alias to its canonical model id. Names containing '/' are
// treated as canonical and returned unchanged.
func (r *Registry) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if id, ok := r.byName[name]; ok {
		return id, nil
	}
	if strings.Contains(name, "/") {
		return name, nil
	}
	return "", &ModelNotFoundError{Name: name, Known: r.Aliases()}
}

// Aliases lists alias names in registration order.
func (r *Registry) Aliases() []string {
	out := make([]string, 0, len(r.aliases))
	for _, a := range r.aliases {
		out = append(out, a.Name)
	}
	return out
}

func (r *Registry) Entries() []Alias {
	out := make([]Alias, len(r.aliases))
	copy(out, r.aliases)
	return out
}

func (r *Registry) Price(modelID string) (Price, bool) {
	p, ok := r.prices[modelID]
	return p, ok
}

// EstimateCost prices token counts from the table; unknown ids cost 0.
func (r *Registry) EstimateCost(modelID string, inputTokens, outputTokens int64) float64 {
	p, ok := r.prices[modelID]
	if !ok {
		return 0
	}
	return p.Cost(inputTokens, outputTokens)
}

func (r *Registry) JudgeModel() string {
	return r.judge
}
