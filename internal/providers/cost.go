package providers

import (
	"finrag/internal/registry"

	"github.com/tidwall/gjson"
)

type CostSource string

const (
	CostReported  CostSource = "reported"
	CostEstimated CostSource = "estimated"
	CostUnknown   CostSource = "unknown"
)

// PriceTable is satisfied by *registry.Registry.
type PriceTable interface {
	Price(modelID string) (registry.Price, bool)
}

// ResolveCost picks the cost of one completion: the provider-reported figure
// in the raw response body ("usage.cost", then top-level "cost"), else the
// table price for modelID, else zero.
func ResolveCost(rawResponse, modelID string, inputTokens, outputTokens int64, prices PriceTable) (float64, CostSource) {
	if rawResponse != "" {
		for _, path := range []string{"usage.cost", "cost"} {
			if v := gjson.Get(rawResponse, path); v.Exists() && v.Type == gjson.Number && v.Float() >= 0 {
				return v.Float(), CostReported
			}
		}
	}
	if prices != nil {
		if p, ok := prices.Price(modelID); ok {
			return p.Cost(inputTokens, outputTokens), CostEstimated
		}
	}
	return 0, CostUnknown
}
