package research

import (
	"context"
	"fmt"
)

// Compile-time interface check.
var _ Harvester = SimHarvester{}

// SimHarvester synthesizes deterministic candidate sources without touching
// the network. It backs offline runs and tests; the generated relevance
// ramps down from 0.9 and is floored at 0.1 so large budgets stay in range.
type SimHarvester struct{}

// Harvest implements Harvester.
func (SimHarvester) Harvest(_ context.Context, _ Plan, budget int) ([]Source, error) {
	if budget < 1 {
		return nil, fmt.Errorf("research: harvest budget must be positive, got %d", budget)
	}
	sources := make([]Source, budget)
	for i := range sources {
		relevance := 0.9 - 0.1*float64(i)
		if relevance < 0.1 {
			relevance = 0.1
		}
		sources[i] = Source{
			URL:       fmt.Sprintf("https://example.com/%d", i),
			Title:     fmt.Sprintf("Source %d", i),
			Relevance: relevance,
		}
	}
	return sources, nil
}
