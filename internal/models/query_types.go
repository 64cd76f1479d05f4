// internal/models/query_types.go
package models

type QueryType string

const (
	QueryTypeListingSearch QueryType = "listing_search"
	QueryTypeListingCount  QueryType = "listing_count"
	QueryTypeListingByID   QueryType = "listing_by_id"
	QueryTypeMetadata      QueryType = "metadata"
)
