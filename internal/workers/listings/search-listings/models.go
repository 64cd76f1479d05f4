// internal/workers/listings/search-listings/models.go
package searchlistings

import search "carmarket-search/internal/search/service"

// Input carries the same loose filter map the HTTP query string produces.
type Input struct {
	RawFilters map[string]interface{} `json:"rawFilters"`
}

type Output struct {
	Envelope *search.ResultEnvelope `json:"envelope"`
}
