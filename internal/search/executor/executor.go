// Package executor runs compiled listing predicates against a storage backend.
package executor

import (
	"context"

	"carmarket-search/internal/models"
	"carmarket-search/internal/search/predicate"
	"carmarket-search/internal/search/sortpage"
)

// Result is one page of rows plus the total match count, independent of the window.
type Result struct {
	Rows  []models.Listing `json:"rows"`
	Total int64            `json:"total"`
}

// Executor is the storage port used by the search service.
type Executor interface {
	Execute(ctx context.Context, preds []predicate.Predicate, sort sortpage.Sort, page sortpage.Page) (*Result, error)
	FindByID(ctx context.Context, id string) (*models.Listing, error)
	Backend() string
}
