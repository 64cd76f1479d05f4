package predicate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"carmarket-search/internal/models"
	"carmarket-search/internal/search/filterspec"
)

// Vocabulary is a snapshot of the admin-managed enum values, keyed by type.
// A type with no entries is treated as unrestricted.
type Vocabulary map[models.MetadataType]map[string]bool

// NewVocabulary indexes metadata items by type and lowercased value.
func NewVocabulary(items []models.MetadataItem) Vocabulary {
	v := Vocabulary{}
	for _, item := range items {
		if v[item.Type] == nil {
			v[item.Type] = map[string]bool{}
		}
		v[item.Type][strings.ToLower(item.Value)] = true
	}
	return v
}

// Known reports whether value is acceptable for kind.
func (v Vocabulary) Known(kind models.MetadataType, value string) bool {
	values, ok := v[kind]
	if !ok || len(values) == 0 {
		return true
	}
	return values[strings.ToLower(value)]
}

// Values returns the known values for kind in no particular order.
func (v Vocabulary) Values(kind models.MetadataType) []string {
	out := make([]string, 0, len(v[kind]))
	for value := range v[kind] {
		out = append(out, value)
	}
	return out
}

// Mandatory returns the visibility predicates every search starts with.
func Mandatory() []Predicate {
	return []Predicate{
		Equals{Field: FieldStatus, Value: string(models.ListingStatusApproved)},
		Equals{Field: FieldIsActive, Value: true},
	}
}

// Build is pure: equal specs and vocabularies give deeply equal output, in a
// fixed facet order after the two mandatory predicates.
func Build(spec filterspec.FilterSpec, vocab Vocabulary) []Predicate {
	preds := Mandatory()

	if spec.Query != "" {
		preds = append(preds, Or{Predicates: []Predicate{
			Contains{Field: FieldMake, Value: spec.Query},
			Contains{Field: FieldModel, Value: spec.Query},
			Contains{Field: FieldTitle, Value: spec.Query},
		}})
	}

	if spec.Make != "" {
		preds = append(preds, Contains{Field: FieldMake, Value: spec.Make})
	}
	if spec.Model != "" {
		preds = append(preds, Contains{Field: FieldModel, Value: spec.Model})
	}

	if spec.YearMin != nil {
		preds = append(preds, RangeMin{Field: FieldYear, Value: *spec.YearMin})
	}
	if spec.YearMax != nil {
		preds = append(preds, RangeMax{Field: FieldYear, Value: *spec.YearMax})
	}
	if spec.PriceMin != nil {
		preds = append(preds, RangeMin{Field: FieldPrice, Value: *spec.PriceMin})
	}
	if spec.PriceMax != nil {
		preds = append(preds, RangeMax{Field: FieldPrice, Value: *spec.PriceMax})
	}
	if spec.MileageMax != nil {
		preds = append(preds, RangeMax{Field: FieldMileage, Value: *spec.MileageMax})
	}

	enums := []struct {
		field Field
		kind  models.MetadataType
		value string
	}{
		{FieldFuelType, models.MetadataFuelType, spec.FuelType},
		{FieldTransmission, models.MetadataTransmissionType, spec.Transmission},
		{FieldBodyType, models.MetadataBodyType, spec.BodyType},
		{FieldCondition, models.MetadataCondition, spec.Condition},
	}
	for _, e := range enums {
		if e.value == "" {
			continue
		}
		value := strings.ToLower(e.value)
		if !vocab.Known(e.kind, value) {
			preds = append(preds, MatchNone{Field: e.field, Value: value})
			continue
		}
		preds = append(preds, Equals{Field: e.field, Value: value})
	}

	places := []struct {
		field Field
		value string
	}{
		{FieldLocation, spec.Location},
		{FieldCity, spec.City},
		{FieldState, spec.State},
		{FieldCountry, spec.Country},
	}
	for _, p := range places {
		if p.value != "" {
			preds = append(preds, Contains{Field: p.field, Value: p.value})
		}
	}

	return preds
}

// Key is a stable content hash of preds, suitable as a cache key component.
func Key(preds []Predicate) string {
	h := sha256.New()
	for _, p := range preds {
		h.Write([]byte(p.String()))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Unsatisfiable reports whether preds can never match, so storage can be skipped.
func Unsatisfiable(preds []Predicate) bool {
	for _, p := range preds {
		if p.Kind() == KindMatchNone {
			return true
		}
	}
	return false
}
