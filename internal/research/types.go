// Package research supplies the acquisition and extraction collaborators the
// pipeline drives: planning queries, harvesting candidate sources, fetching
// their content and distilling key points from it.
package research

import (
	"context"
	"time"
)

// Source is one harvested candidate, ranked by relevance in [0, 1].
type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Relevance float64 `json:"relevance"`
}

// Document is the fetched content of a source.
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Extraction is the distilled output for one document.
type Extraction struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points"`
	Quotes    []string `json:"quotes"`
}

// Plan is the research strategy derived from a topic. It is persisted with
// the run so a resumed attempt replays the same strategy.
type Plan struct {
	Queries              []string `json:"queries"`
	SourceCategories     []string `json:"sources"`
	EstimatedSourceCount int      `json:"estimated_sources"`
	Depth                string   `json:"depth"`
}

// Harvester produces candidate sources for a plan. Implementations return
// exactly budget sources, ordered by descending relevance.
type Harvester interface {
	Harvest(ctx context.Context, plan Plan, budget int) ([]Source, error)
}

// Fetcher retrieves the content behind a single source.
type Fetcher interface {
	FetchContent(ctx context.Context, src Source) (Document, error)
}
