package extractor

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"carmarket-search/internal/models"
	"carmarket-search/internal/search/filterspec"
	"carmarket-search/internal/search/predicate"
)

const (
	rulesBaseConfidence = 0.3
	rulesFacetWeight    = 0.15
	rulesMaxConfidence  = 0.95
)

const amountPattern = `\$?\s?(\d[\d,]*(?:\.\d+)?)\s?(k|thousand)?`
const unitPattern = `\s*(miles?|mi|km)?\b`

var (
	yearRangeRe = regexp.MustCompile(`(?:from|between)\s+((?:19|20)\d{2})\s*(?:and|to|-)\s*((?:19|20)\d{2})\b`)
	yearMinRe   = regexp.MustCompile(`((?:19|20)\d{2})\s*(?:or|and)\s*(?:newer|later|up|above)|((?:19|20)\d{2})\+|(?:newer than|after|since)\s+((?:19|20)\d{2})\b`)
	yearMaxRe   = regexp.MustCompile(`((?:19|20)\d{2})\s*(?:or|and)\s*(?:older|earlier|below)|(?:older than|before)\s+((?:19|20)\d{2})\b`)
	yearRe      = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

	betweenRe = regexp.MustCompile(`(?:between|from)\s+` + amountPattern + `\s*(?:and|to|-)\s*` + amountPattern + unitPattern)
	maxRe     = regexp.MustCompile(`(?:under|below|less than|cheaper than|up to|no more than|at most|max(?:imum)?|within)\s+` + amountPattern + unitPattern)
	minRe     = regexp.MustCompile(`(?:over|above|more than|at least|starting at|min(?:imum)?)\s+` + amountPattern + unitPattern)

	wordRe = regexp.MustCompile(`^\s+([a-z0-9][a-z0-9-]*)`)
)

var defaultTerms = map[models.MetadataType][]string{
	models.MetadataBodyType:         {"sedan", "suv", "hatchback", "coupe", "convertible", "wagon", "pickup", "truck", "van", "minivan"},
	models.MetadataFuelType:         {"petrol", "diesel", "electric", "hybrid"},
	models.MetadataTransmissionType: {"automatic", "manual"},
	models.MetadataCondition:        {"new", "used"},
	models.MetadataCarFeature:       {"gps", "navigation", "sunroof", "bluetooth", "leather seats", "backup camera", "heated seats", "cruise control", "apple carplay", "android auto", "third row"},
}

var defaultMakes = []string{
	"Toyota", "Honda", "Ford", "Chevrolet", "BMW", "Mercedes-Benz", "Audi", "Volkswagen",
	"Nissan", "Hyundai", "Kia", "Mazda", "Subaru", "Tesla", "Lexus", "Jeep",
}

// synonyms resolve onto a vocabulary value when that value is known.
var synonyms = map[models.MetadataType]map[string]string{
	models.MetadataFuelType: {"gas": "petrol", "gasoline": "petrol", "ev": "electric"},
	models.MetadataBodyType: {"pickup truck": "pickup", "estate": "wagon"},
}

var modelStopwords = map[string]bool{
	"and": true, "or": true, "for": true, "with": true, "in": true, "under": true, "over": true,
	"below": true, "above": true, "cars": true, "car": true, "vs": true, "versus": true, "the": true,
	"near": true, "from": true, "between": true, "that": true, "which": true, "only": true,
	"please": true, "available": true, "around": true, "to": true,
}

type sortHint struct {
	re    *regexp.Regexp
	by    string
	order string
}

var sortHints = []sortHint{
	{regexp.MustCompile(`\b(cheapest|lowest price|least expensive)\b`), filterspec.SortPrice, filterspec.OrderASC},
	{regexp.MustCompile(`\b(most expensive|highest price)\b`), filterspec.SortPrice, filterspec.OrderDESC},
	{regexp.MustCompile(`\b(lowest mileage|least miles|fewest miles)\b`), filterspec.SortMileage, filterspec.OrderASC},
	{regexp.MustCompile(`\b(newest|latest model)\b`), filterspec.SortYear, filterspec.OrderDESC},
	{regexp.MustCompile(`\b(most popular|most viewed)\b`), filterspec.SortViewCount, filterspec.OrderDESC},
}

func (e *Extractor) extractWithRules(ctx context.Context, utterance string) ExtractedQuery {
	terms, makes := e.terms(ctx)
	return extractRules(utterance, terms, makes)
}

// terms resolves the matcher vocabulary, falling back to built-in lists per kind.
func (e *Extractor) terms(ctx context.Context) (map[models.MetadataType][]string, []string) {
	var vocab predicate.Vocabulary
	var makes []string
	if e.vocab != nil {
		var err error
		if vocab, err = e.vocab.Vocabulary(ctx); err != nil {
			e.logger.Warn("vocabulary unavailable, using built-in terms", map[string]interface{}{"error": err})
		}
		if makes, err = e.vocab.MakeNames(ctx); err != nil {
			e.logger.Warn("make names unavailable, using built-in makes", map[string]interface{}{"error": err})
		}
	}

	terms := make(map[models.MetadataType][]string, len(defaultTerms))
	for kind, defaults := range defaultTerms {
		if values := vocab.Values(kind); len(values) > 0 {
			terms[kind] = values
		} else {
			terms[kind] = defaults
		}
	}
	if len(makes) == 0 {
		makes = defaultMakes
	}
	return terms, makes
}

func extractRules(utterance string, terms map[models.MetadataType][]string, makes []string) ExtractedQuery {
	orig := strings.ToLower(utterance)
	text := orig
	q := ExtractedQuery{ExtractedKeywords: []string{}}

	text = extractYears(text, &q)
	text = extractAmounts(text, &q)

	for _, name := range byLength(makes) {
		loc := termRegexp(strings.ToLower(name)).FindStringIndex(text)
		if loc == nil {
			continue
		}
		q.Makes = append(q.Makes, name)
		q.ExtractedKeywords = append(q.ExtractedKeywords, name)
		if m := wordRe.FindStringSubmatchIndex(orig[loc[1]:]); m != nil && isModelToken(orig[loc[1]+m[2]:loc[1]+m[3]], terms) {
			model := orig[loc[1]+m[2] : loc[1]+m[3]]
			if len(utterance) == len(orig) {
				model = utterance[loc[1]+m[2] : loc[1]+m[3]]
			}
			q.Models = append(q.Models, model)
			q.ExtractedKeywords = append(q.ExtractedKeywords, model)
		}
		text = blank(text, loc)
	}

	q.BodyTypes = matchTerms(&text, &q, models.MetadataBodyType, terms)
	q.FuelTypes = matchTerms(&text, &q, models.MetadataFuelType, terms)
	q.Transmission = first(matchTerms(&text, &q, models.MetadataTransmissionType, terms))
	q.Condition = first(matchTerms(&text, &q, models.MetadataCondition, terms))
	q.Features = matchTerms(&text, &q, models.MetadataCarFeature, terms)

	for _, hint := range sortHints {
		if m := hint.re.FindString(text); m != "" {
			q.SortBy, q.SortOrder = hint.by, hint.order
			q.ExtractedKeywords = append(q.ExtractedKeywords, m)
			break
		}
	}

	q.Confidence = math.Min(rulesBaseConfidence+rulesFacetWeight*float64(facetCount(q)), rulesMaxConfidence)
	return q
}

func extractYears(text string, q *ExtractedQuery) string {
	if m := yearRangeRe.FindStringSubmatchIndex(text); m != nil {
		lo, hi := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]])
		q.YearMin, q.YearMax = &lo, &hi
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[0]:m[1]])
		return blank(text, m[:2])
	}

	if m := yearMinRe.FindStringSubmatchIndex(text); m != nil {
		y := atoi(firstGroup(text, m))
		q.YearMin = &y
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[0]:m[1]])
		text = blank(text, m[:2])
	}
	if m := yearMaxRe.FindStringSubmatchIndex(text); m != nil {
		y := atoi(firstGroup(text, m))
		q.YearMax = &y
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[0]:m[1]])
		text = blank(text, m[:2])
	}
	if q.YearMin != nil || q.YearMax != nil {
		return text
	}

	for _, m := range yearRe.FindAllStringSubmatchIndex(text, -1) {
		if isAmountContext(text, m[0], m[1]) {
			continue
		}
		y := atoi(text[m[2]:m[3]])
		q.YearMin, q.YearMax = &y, filterspec.IntPtr(y)
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[2]:m[3]])
		return blank(text, m[:2])
	}
	return text
}

// isAmountContext rejects a bare four-digit number that reads as money or distance.
func isAmountContext(text string, start, end int) bool {
	if start > 0 && text[start-1] == '$' {
		return true
	}
	rest := strings.TrimLeft(text[end:], " ")
	for _, suffix := range []string{"k", "mile", "mi", "km", "thousand", ",", "dollar", "usd"} {
		if strings.HasPrefix(rest, suffix) {
			return true
		}
	}
	return false
}

func extractAmounts(text string, q *ExtractedQuery) string {
	if m := betweenRe.FindStringSubmatchIndex(text); m != nil {
		lo := amount(text, m[2], m[3], m[4], m[5])
		hi := amount(text, m[6], m[7], m[8], m[9])
		if group(text, m, 5) != "" {
			miles := int(hi)
			q.MileageMax = &miles
		} else {
			q.PriceMin, q.PriceMax = &lo, &hi
		}
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[0]:m[1]])
		text = blank(text, m[:2])
	}

	for _, m := range maxRe.FindAllStringSubmatchIndex(text, -1) {
		v := amount(text, m[2], m[3], m[4], m[5])
		if group(text, m, 3) != "" {
			miles := int(v)
			q.MileageMax = &miles
		} else if q.PriceMax == nil {
			q.PriceMax = &v
		}
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[0]:m[1]])
		text = blank(text, m[:2])
	}

	for _, m := range minRe.FindAllStringSubmatchIndex(text, -1) {
		if group(text, m, 3) != "" {
			continue
		}
		v := amount(text, m[2], m[3], m[4], m[5])
		if q.PriceMin == nil {
			q.PriceMin = &v
		}
		q.ExtractedKeywords = append(q.ExtractedKeywords, text[m[0]:m[1]])
		text = blank(text, m[:2])
	}
	return text
}

func matchTerms(text *string, q *ExtractedQuery, kind models.MetadataType, terms map[models.MetadataType][]string) []string {
	known := map[string]bool{}
	for _, t := range terms[kind] {
		known[strings.ToLower(t)] = true
	}

	var found []string
	seen := map[string]bool{}
	add := func(value, keyword string, loc []int) {
		if !seen[value] {
			seen[value] = true
			found = append(found, value)
			q.ExtractedKeywords = append(q.ExtractedKeywords, keyword)
		}
		*text = blank(*text, loc)
	}

	for _, term := range byLength(terms[kind]) {
		term = strings.ToLower(term)
		if loc := termRegexp(term).FindStringIndex(*text); loc != nil {
			add(term, term, loc)
		}
	}
	for alias, target := range synonyms[kind] {
		if !known[target] {
			continue
		}
		if loc := termRegexp(alias).FindStringIndex(*text); loc != nil {
			add(target, alias, loc)
		}
	}
	sort.Strings(found)
	return found
}

func isModelToken(word string, terms map[models.MetadataType][]string) bool {
	if modelStopwords[word] || yearRe.MatchString(word) {
		return false
	}
	for _, values := range terms {
		for _, v := range values {
			if strings.EqualFold(v, word) || strings.EqualFold(v+"s", word) {
				return false
			}
		}
	}
	return true
}

func termRegexp(term string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `(?:s|es)?\b`)
}

func byLength(values []string) []string {
	out := append([]string(nil), values...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// blank erases a consumed span so later patterns cannot match it again.
func blank(text string, loc []int) string {
	return text[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + text[loc[1]:]
}

func amount(text string, numStart, numEnd, kStart, kEnd int) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(text[numStart:numEnd], ",", ""), 64)
	if kStart >= 0 && kEnd > kStart {
		v *= 1000
	}
	return v
}

func group(text string, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return text[m[2*n]:m[2*n+1]]
}

func firstGroup(text string, m []int) string {
	for n := 1; 2*n < len(m); n++ {
		if g := group(text, m, n); g != "" {
			return g
		}
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
