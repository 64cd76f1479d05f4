// Package sortpage resolves sort fields onto their owning relation and bounds pagination.
package sortpage

import (
	"strings"

	"carmarket-search/internal/search/filterspec"
	"carmarket-search/internal/search/predicate"
)

var sortFields = map[string]predicate.Field{
	filterspec.SortCreatedAt: predicate.FieldCreatedAt,
	filterspec.SortPrice:     predicate.FieldPrice,
	filterspec.SortViewCount: predicate.FieldViewCount,
	filterspec.SortYear:      predicate.FieldYear,
	filterspec.SortMileage:   predicate.FieldMileage,
}

type Sort struct {
	By    string
	Field predicate.Field
	Order string
}

// Descending reports whether the sort runs high to low.
func (s Sort) Descending() bool {
	return s.Order == filterspec.OrderDESC
}

// Resolve falls back to createdAt DESC for anything outside the closed set.
func Resolve(sortBy, order string) Sort {
	field, ok := sortFields[sortBy]
	if !ok {
		sortBy = filterspec.SortCreatedAt
		field = predicate.FieldCreatedAt
	}

	order = strings.ToUpper(order)
	if order != filterspec.OrderASC {
		order = filterspec.OrderDESC
	}
	return Sort{By: sortBy, Field: field, Order: order}
}

// Page is a 1-based pagination window.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps to page in [1, filterspec.MaxPage(limit)] and limit in [1, filterspec.MaxLimit].
func NewPage(page, limit int) Page {
	return NewPageWithMax(page, limit, filterspec.MaxLimit)
}

func NewPageWithMax(page, limit, maxLimit int) Page {
	if maxLimit < 1 {
		maxLimit = filterspec.MaxLimit
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page > filterspec.MaxPage(limit) {
		page = filterspec.MaxPage(limit)
	}
	return Page{Number: page, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// TotalPages is ceil(total/limit); zero when there are no rows.
func (p Page) TotalPages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	limit := int64(p.Limit)
	return int((total + limit - 1) / limit)
}
