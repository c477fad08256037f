package research

import (
	"context"
	"fmt"
	"time"
)

// Compile-time interface check.
var _ Fetcher = SimFetcher{}

// SimFetcher produces placeholder content for a source without any network
// traffic. It pairs with SimHarvester for offline runs.
type SimFetcher struct{}

// FetchContent implements Fetcher.
func (SimFetcher) FetchContent(_ context.Context, src Source) (Document, error) {
	return Document{
		URL:       src.URL,
		Title:     src.Title,
		Content:   fmt.Sprintf("Offline content for %s", src.Title),
		FetchedAt: time.Now().UTC(),
	}, nil
}
