// internal/workers/listings/extract-listing-query/models.go
package extractlistingquery

import (
	"carmarket-search/internal/assistant/extractor"
	"carmarket-search/internal/search/filterspec"
)

type Input struct {
	Utterance string `json:"utterance"`
}

type Output struct {
	ExtractedQuery extractor.ExtractedQuery `json:"extractedQuery"`
	FilterSpec     filterspec.FilterSpec    `json:"filterSpec"`
	Mode           string                   `json:"extractionMode"`
}
