package filterspec

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Defaults
// ==========================

func TestFromValues_EmptyGivesDefaults(t *testing.T) {
	spec, dropped := FromValues(url.Values{})

	assert.Empty(t, dropped)
	assert.Equal(t, New(), spec)
	assert.False(t, spec.HasFacets())
}

func TestFromValues_UnknownParamsIgnored(t *testing.T) {
	spec, dropped := FromValues(url.Values{"foo": {"bar"}, "make": {"Toyota"}})

	assert.Empty(t, dropped)
	assert.Equal(t, "Toyota", spec.Make)
	assert.True(t, spec.HasFacets())
}

// ==========================
// Pagination
// ==========================

func TestFromValues_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		limit     string
		wantPage  int
		wantLimit int
		wantDrops int
	}{
		{"valid", "3", "20", 3, 20, 0},
		{"limit clamped to max", "1", "500", 1, MaxLimit, 0},
		{"limit below one", "1", "0", 1, 1, 0},
		{"page below one", "0", "10", 1, 10, 0},
		{"negative page", "-4", "10", 1, 10, 0},
		{"non numeric page", "abc", "10", DefaultPage, 10, 1},
		{"non numeric limit", "2", "lots", 2, DefaultLimit, 1},
		{"huge page capped", "9223372036854775807", "48", MaxPage(48), 48, 0},
		{"huge page with default limit", "9223372036854775807", "", MaxPage(DefaultLimit), DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, dropped := FromValues(url.Values{"page": {tt.page}, "limit": {tt.limit}})
			assert.Equal(t, tt.wantPage, spec.Page)
			assert.Equal(t, tt.wantLimit, spec.Limit)
			assert.Len(t, dropped, tt.wantDrops)
		})
	}
}

func TestNewParser_CustomBounds(t *testing.T) {
	p := NewParser(5, 20)
	spec, _ := p.FromValues(url.Values{})
	assert.Equal(t, 5, spec.Limit)

	spec, _ = p.FromValues(url.Values{"limit": {"30"}})
	assert.Equal(t, 20, spec.Limit)

	fallback := NewParser(0, 0)
	assert.Equal(t, DefaultLimit, fallback.DefaultLimit)
	assert.Equal(t, MaxLimit, fallback.MaxLimit)
}

// ==========================
// Numeric facets
// ==========================

func TestFromValues_NumericFacets(t *testing.T) {
	spec, dropped := FromValues(url.Values{
		"priceMin":   {"USD 5,000.50"},
		"priceMax":   {"$30,000"},
		"yearMin":    {"2018.7"},
		"mileageMax": {"50k"},
	})

	require.Empty(t, dropped)
	require.NotNil(t, spec.PriceMin)
	assert.Equal(t, 5000.50, *spec.PriceMin)
	require.NotNil(t, spec.PriceMax)
	assert.Equal(t, 30000.0, *spec.PriceMax)
	require.NotNil(t, spec.YearMin)
	assert.Equal(t, 2018, *spec.YearMin)
	require.NotNil(t, spec.MileageMax)
	assert.Equal(t, 50000, *spec.MileageMax)
}

func TestFromValues_MalformedNumbersDropped(t *testing.T) {
	spec, dropped := FromValues(url.Values{
		"priceMax": {"abc"},
		"yearMin":  {"-2018"},
		"make":     {"Honda"},
	})

	assert.Nil(t, spec.PriceMax)
	assert.Nil(t, spec.YearMin)
	assert.Equal(t, "Honda", spec.Make)

	require.Len(t, dropped, 2)
	byField := map[string]DroppedField{}
	for _, d := range dropped {
		byField[d.Field] = d
	}
	assert.Equal(t, "abc", byField["priceMax"].Value)
	assert.Equal(t, errNotANumber.Error(), byField["priceMax"].Reason)
	assert.Equal(t, errNegative.Error(), byField["yearMin"].Reason)
}

func TestFromValues_BlankNumbersAreAbsent(t *testing.T) {
	spec, dropped := FromValues(url.Values{"priceMax": {"  "}, "yearMin": {""}})
	assert.Empty(t, dropped)
	assert.Nil(t, spec.PriceMax)
	assert.Nil(t, spec.YearMin)
}

func TestFromValues_InvertedRangePreserved(t *testing.T) {
	spec, dropped := FromValues(url.Values{"yearMin": {"2022"}, "yearMax": {"2018"}})

	assert.Empty(t, dropped)
	assert.Equal(t, 2022, *spec.YearMin)
	assert.Equal(t, 2018, *spec.YearMax)
}

// ==========================
// String facets and sorting
// ==========================

func TestFromValues_StringFacets(t *testing.T) {
	spec, _ := FromValues(url.Values{
		"query":        {"  civic  "},
		"fuelType":     {"Petrol"},
		"transmission": {"AUTOMATIC"},
		"bodyType":     {"SUV"},
		"location":     {"Lagos"},
	})

	assert.Equal(t, "civic", spec.Query)
	assert.Equal(t, "petrol", spec.FuelType)
	assert.Equal(t, "automatic", spec.Transmission)
	assert.Equal(t, "suv", spec.BodyType)
	assert.Equal(t, "Lagos", spec.Location)
}

func TestFromValues_Sorting(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		wantBy    string
		wantOrder string
		wantDrops int
	}{
		{"valid", "price", "asc", SortPrice, OrderASC, 0},
		{"car relation field", "mileage", "DESC", SortMileage, OrderDESC, 0},
		{"unknown field", "horsepower", "ASC", SortCreatedAt, OrderASC, 1},
		{"unknown order", "year", "sideways", SortYear, OrderDESC, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, dropped := FromValues(url.Values{"sortBy": {tt.sortBy}, "sortOrder": {tt.sortOrder}})
			assert.Equal(t, tt.wantBy, spec.SortBy)
			assert.Equal(t, tt.wantOrder, spec.SortOrder)
			assert.Len(t, dropped, tt.wantDrops)
		})
	}
}

// ==========================
// Untyped input
// ==========================

func TestFromMap_TypedValues(t *testing.T) {
	spec, dropped := FromMap(map[string]interface{}{
		"make":     []interface{}{"", "Honda", "Toyota"},
		"priceMax": float64(30000),
		"yearMin":  2015,
		"bodyType": 42,
		"limit":    float64(12),
	})

	assert.Equal(t, "Honda", spec.Make)
	assert.Equal(t, 30000.0, *spec.PriceMax)
	assert.Equal(t, 2015, *spec.YearMin)
	assert.Equal(t, "", spec.BodyType)
	assert.Equal(t, 12, spec.Limit)

	require.Len(t, dropped, 1)
	assert.Equal(t, "bodyType", dropped[0].Field)
	assert.Equal(t, "42", dropped[0].Value)
}

func TestFromMap_NilValues(t *testing.T) {
	spec, dropped := FromMap(map[string]interface{}{"make": nil, "priceMax": nil})
	assert.Empty(t, dropped)
	assert.Equal(t, "", spec.Make)
	assert.Nil(t, spec.PriceMax)
}
