package filterspec

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	errNotANumber = errors.New("not a number")
	errNegative   = errors.New("must be >= 0")
	errNotString  = errors.New("expected a string")
)

var numberPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Parser builds FilterSpecs with configurable pagination bounds.
type Parser struct {
	DefaultLimit int
	MaxLimit     int
}

// NewParser returns a parser; non-positive bounds fall back to the package defaults.
func NewParser(defaultLimit, maxLimit int) *Parser {
	if maxLimit < 1 {
		maxLimit = MaxLimit
	}
	if defaultLimit < 1 || defaultLimit > maxLimit {
		defaultLimit = DefaultLimit
		if defaultLimit > maxLimit {
			defaultLimit = maxLimit
		}
	}
	return &Parser{DefaultLimit: defaultLimit, MaxLimit: maxLimit}
}

var defaultParser = NewParser(DefaultLimit, MaxLimit)

// FromValues parses an HTTP query string with the default bounds.
func FromValues(values url.Values) (FilterSpec, []DroppedField) {
	return defaultParser.FromValues(values)
}

// FromMap parses untyped key/value input with the default bounds.
func FromMap(raw map[string]interface{}) (FilterSpec, []DroppedField) {
	return defaultParser.FromMap(raw)
}

// FromValues uses the first value of every known key. Unknown keys are ignored.
func (p *Parser) FromValues(values url.Values) (FilterSpec, []DroppedField) {
	raw := make(map[string]interface{}, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			raw[key] = vals[0]
		}
	}
	return p.FromMap(raw)
}

// FromMap never fails: malformed facets are excluded and reported, page and
// limit are clamped, and inverted ranges are kept as given.
func (p *Parser) FromMap(raw map[string]interface{}) (FilterSpec, []DroppedField) {
	spec := New()
	spec.Limit = p.DefaultLimit
	var dropped []DroppedField

	drop := func(field string, value interface{}, reason error) {
		dropped = append(dropped, DroppedField{Field: field, Value: fmt.Sprint(value), Reason: reason.Error()})
	}

	partial := []struct {
		key    string
		target *string
	}{
		{"query", &spec.Query},
		{"make", &spec.Make},
		{"model", &spec.Model},
		{"location", &spec.Location},
		{"city", &spec.City},
		{"state", &spec.State},
		{"country", &spec.Country},
	}
	for _, f := range partial {
		if v, ok := raw[f.key]; ok {
			s, err := parseString(v)
			if err != nil {
				drop(f.key, v, err)
				continue
			}
			*f.target = s
		}
	}

	// enumerated facets are matched case-insensitively against the vocabulary
	enums := []struct {
		key    string
		target *string
	}{
		{"fuelType", &spec.FuelType},
		{"transmission", &spec.Transmission},
		{"bodyType", &spec.BodyType},
		{"condition", &spec.Condition},
	}
	for _, f := range enums {
		if v, ok := raw[f.key]; ok {
			s, err := parseString(v)
			if err != nil {
				drop(f.key, v, err)
				continue
			}
			*f.target = strings.ToLower(s)
		}
	}

	ints := []struct {
		key    string
		target **int
	}{
		{"yearMin", &spec.YearMin},
		{"yearMax", &spec.YearMax},
		{"mileageMax", &spec.MileageMax},
	}
	for _, f := range ints {
		if v, ok := raw[f.key]; ok && !isBlank(v) {
			n, err := parseInt(v)
			if err != nil {
				drop(f.key, v, err)
				continue
			}
			*f.target = IntPtr(n)
		}
	}

	decimals := []struct {
		key    string
		target **float64
	}{
		{"priceMin", &spec.PriceMin},
		{"priceMax", &spec.PriceMax},
	}
	for _, f := range decimals {
		if v, ok := raw[f.key]; ok && !isBlank(v) {
			n, err := parseDecimal(v)
			if err != nil {
				drop(f.key, v, err)
				continue
			}
			*f.target = FloatPtr(n)
		}
	}

	if v, ok := raw["page"]; ok && !isBlank(v) {
		if n, err := parseSignedInt(v); err != nil {
			drop("page", v, err)
		} else if n < 1 {
			spec.Page = 1
		} else {
			spec.Page = n
		}
	}

	if v, ok := raw["limit"]; ok && !isBlank(v) {
		if n, err := parseSignedInt(v); err != nil {
			drop("limit", v, err)
		} else {
			spec.Limit = clamp(n, 1, p.MaxLimit)
		}
	}
	if spec.Page > MaxPage(spec.Limit) {
		spec.Page = MaxPage(spec.Limit)
	}

	if v, ok := raw["sortBy"]; ok && !isBlank(v) {
		s, _ := parseString(v)
		if SortFields[s] {
			spec.SortBy = s
		} else {
			drop("sortBy", v, fmt.Errorf("unsupported sort field, using %s", SortCreatedAt))
		}
	}

	if v, ok := raw["sortOrder"]; ok && !isBlank(v) {
		s, _ := parseString(v)
		switch strings.ToUpper(s) {
		case OrderASC:
			spec.SortOrder = OrderASC
		case OrderDESC:
			spec.SortOrder = OrderDESC
		default:
			drop("sortOrder", v, fmt.Errorf("unsupported sort order, using %s", OrderDESC))
		}
	}

	return spec, dropped
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isBlank(raw interface{}) bool {
	s, ok := raw.(string)
	return raw == nil || (ok && strings.TrimSpace(s) == "")
}

// parseString accepts a string or the first string of a list.
func parseString(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case []string:
		for _, s := range v {
			if t := strings.TrimSpace(s); t != "" {
				return t, nil
			}
		}
		return "", nil
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					return t, nil
				}
			}
		}
		return "", nil
	default:
		return "", errNotString
	}
}

// cleanNumber strips currency decorations: "USD 30,000.50" -> "30000.50", "25k" -> "25000".
func cleanNumber(s string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	for _, token := range []string{" ", "$", "usd", ","} {
		cleaned = strings.ReplaceAll(cleaned, token, "")
	}
	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	multiplier := ""
	if strings.HasSuffix(cleaned, "k") {
		cleaned = strings.TrimSuffix(cleaned, "k")
		multiplier = "k"
	}
	if !numberPattern.MatchString(cleaned) {
		return "", negative
	}
	if multiplier == "k" {
		f, _ := strconv.ParseFloat(cleaned, 64)
		cleaned = strconv.FormatFloat(f*1000, 'f', -1, 64)
	}
	return cleaned, negative
}

func parseDecimal(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errNegative
		}
		return v, nil
	case int:
		return parseDecimal(float64(v))
	case int64:
		return parseDecimal(float64(v))
	case string:
		cleaned, negative := cleanNumber(v)
		if cleaned == "" {
			return 0, errNotANumber
		}
		if negative {
			return 0, errNegative
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, errNotANumber
		}
		return f, nil
	default:
		return 0, errNotANumber
	}
}

// parseInt truncates decimals and rejects negatives.
func parseInt(raw interface{}) (int, error) {
	n, err := parseSignedInt(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

func parseSignedInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errNotANumber
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		cleaned, negative := cleanNumber(v)
		if cleaned == "" {
			return 0, errNotANumber
		}
		if dot := strings.Index(cleaned, "."); dot >= 0 {
			cleaned = cleaned[:dot]
		}
		n, err := strconv.Atoi(cleaned)
		if err != nil {
			return 0, errNotANumber
		}
		if negative {
			n = -n
		}
		return n, nil
	default:
		return 0, errNotANumber
	}
}
