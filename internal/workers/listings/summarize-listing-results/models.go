// internal/workers/listings/summarize-listing-results/models.go
package summarizelistingresults

import (
	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/assistant/summarizer"
	search "carmarket-search/internal/search/service"
)

// Input is usually the merged output of extract-listing-query and
// search-listings.
type Input struct {
	Utterance      string                   `json:"utterance"`
	Envelope       *search.ResultEnvelope   `json:"envelope"`
	ExtractedQuery extractor.ExtractedQuery `json:"extractedQuery"`
}

type Output struct {
	Summary summarizer.Summary `json:"summary"`
}
