package summarizer

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"carmarket-search/internal/search/filterspec"
)

// DescribeFilters renders the criteria a search actually ran with, e.g.
// "Make: Honda, Price: $0-$30000".
func DescribeFilters(spec filterspec.FilterSpec) string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}

	add("Make", spec.Make)
	add("Model", spec.Model)
	if spec.YearMin != nil || spec.YearMax != nil {
		add("Year", intOr(spec.YearMin, "any")+"-"+intOr(spec.YearMax, "any"))
	}
	add("Type", spec.BodyType)
	add("Fuel", spec.FuelType)
	add("Transmission", spec.Transmission)
	add("Condition", spec.Condition)
	if spec.PriceMin != nil || spec.PriceMax != nil {
		add("Price", "$"+floatOr(spec.PriceMin, "0")+"-$"+floatOr(spec.PriceMax, "∞"))
	}
	if spec.MileageMax != nil {
		add("Max mileage", FormatNumber(float64(*spec.MileageMax))+" miles")
	}
	add("Location", location(spec))
	if spec.Query != "" {
		add("Keywords", strconv.Quote(spec.Query))
	}

	if len(parts) == 0 {
		return "No specific filters"
	}
	return strings.Join(parts, ", ")
}

func location(spec filterspec.FilterSpec) string {
	var parts []string
	for _, v := range []string{spec.Location, spec.City, spec.State, spec.Country} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func intOr(v *int, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.Itoa(*v)
}

func floatOr(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatNumber groups thousands with commas and keeps up to two decimals,
// e.g. 24500 -> "24,500", 1234.5 -> "1,234.5".
func FormatNumber(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}
