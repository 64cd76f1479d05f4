// Package filterspec holds the validated search criteria and the best-effort
// parser that builds them from query strings or extracted entities.
package filterspec

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 48

	// MaxOffset bounds (page-1)*limit so it fits a 32-bit OFFSET/from.
	MaxOffset = math.MaxInt32
)

const (
	SortCreatedAt = "createdAt"
	SortPrice     = "price"
	SortMileage   = "mileage"
	SortYear      = "year"
	SortViewCount = "viewCount"

	OrderASC  = "ASC"
	OrderDESC = "DESC"
)

// SortFields is the closed set of sortable fields.
var SortFields = map[string]bool{
	SortCreatedAt: true,
	SortPrice:     true,
	SortMileage:   true,
	SortYear:      true,
	SortViewCount: true,
}

// FilterSpec is the canonical query intent for one search. Nil pointers and
// empty strings mean the facet is not set.
type FilterSpec struct {
	Query string `json:"query,omitempty"`

	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`

	YearMin    *int     `json:"yearMin,omitempty"`
	YearMax    *int     `json:"yearMax,omitempty"`
	PriceMin   *float64 `json:"priceMin,omitempty"`
	PriceMax   *float64 `json:"priceMax,omitempty"`
	MileageMax *int     `json:"mileageMax,omitempty"`

	FuelType     string `json:"fuelType,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	BodyType     string `json:"bodyType,omitempty"`
	Condition    string `json:"condition,omitempty"`

	Location string `json:"location,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`

	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// DroppedField reports a facet the parser excluded from the spec.
type DroppedField struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// New returns an empty spec with default pagination and sorting.
func New() FilterSpec {
	return FilterSpec{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    SortCreatedAt,
		SortOrder: OrderDESC,
	}
}

// HasFacets reports whether any narrowing criterion is set.
func (f FilterSpec) HasFacets() bool {
	return f.Query != "" || f.Make != "" || f.Model != "" ||
		f.YearMin != nil || f.YearMax != nil ||
		f.PriceMin != nil || f.PriceMax != nil || f.MileageMax != nil ||
		f.FuelType != "" || f.Transmission != "" || f.BodyType != "" || f.Condition != "" ||
		f.Location != "" || f.City != "" || f.State != "" || f.Country != ""
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

// MaxPage is the last page whose offset stays within MaxOffset.
func MaxPage(limit int) int {
	if limit < 1 {
		limit = 1
	}
	return MaxOffset/limit + 1
}
