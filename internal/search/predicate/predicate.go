// Package predicate turns a FilterSpec into an ordered list of storage-neutral
// predicates. Executors compile the same list into SQL or an Elasticsearch
// bool query, so every search path filters identically.
package predicate

import (
	"fmt"
	"strconv"
	"strings"
)

// Relation names the record that owns a field.
type Relation string

const (
	RelationListing Relation = "listing"
	RelationCar     Relation = "car"
)

// Field is a filterable or sortable attribute. Name is the document/JSON name,
// Column the SQL column on the owning relation.
type Field struct {
	Relation Relation
	Name     string
	Column   string
}

func (f Field) String() string {
	return string(f.Relation) + "." + f.Name
}

var (
	FieldStatus    = Field{RelationListing, "status", "status"}
	FieldIsActive  = Field{RelationListing, "isActive", "is_active"}
	FieldTitle     = Field{RelationListing, "title", "title"}
	FieldPrice     = Field{RelationListing, "price", "price"}
	FieldViewCount = Field{RelationListing, "viewCount", "view_count"}
	FieldCreatedAt = Field{RelationListing, "createdAt", "created_at"}
	FieldLocation  = Field{RelationListing, "location", "location"}
	FieldCity      = Field{RelationListing, "city", "city"}
	FieldState     = Field{RelationListing, "state", "state"}
	FieldCountry   = Field{RelationListing, "country", "country"}

	FieldMake         = Field{RelationCar, "make", "make"}
	FieldModel        = Field{RelationCar, "model", "model"}
	FieldYear         = Field{RelationCar, "year", "year"}
	FieldMileage      = Field{RelationCar, "mileage", "mileage"}
	FieldFuelType     = Field{RelationCar, "fuelType", "fuel_type"}
	FieldTransmission = Field{RelationCar, "transmission", "transmission"}
	FieldBodyType     = Field{RelationCar, "bodyType", "body_type"}
	FieldCondition    = Field{RelationCar, "condition", "condition"}
)

type Kind string

const (
	KindEquals    Kind = "equals"
	KindContains  Kind = "contains"
	KindRangeMin  Kind = "range_min"
	KindRangeMax  Kind = "range_max"
	KindOr        Kind = "or"
	KindMatchNone Kind = "match_none"
)

// Predicate is one of Equals, Contains, RangeMin, RangeMax, Or or MatchNone.
type Predicate interface {
	Kind() Kind
	String() string
}

// Equals matches exactly; string values compare case-insensitively.
type Equals struct {
	Field Field
	Value interface{}
}

// Contains is a case-insensitive substring match.
type Contains struct {
	Field Field
	Value string
}

// RangeMin is an inclusive lower bound.
type RangeMin struct {
	Field Field
	Value interface{}
}

// RangeMax is an inclusive upper bound.
type RangeMax struct {
	Field Field
	Value interface{}
}

// Or matches when any child matches. Only free-text queries produce it.
type Or struct {
	Predicates []Predicate
}

// MatchNone rejects every row. It stands in for an enum value outside the vocabulary.
type MatchNone struct {
	Field Field
	Value string
}

func (Equals) Kind() Kind    { return KindEquals }
func (Contains) Kind() Kind  { return KindContains }
func (RangeMin) Kind() Kind  { return KindRangeMin }
func (RangeMax) Kind() Kind  { return KindRangeMax }
func (Or) Kind() Kind        { return KindOr }
func (MatchNone) Kind() Kind { return KindMatchNone }

func (p Equals) String() string   { return fmt.Sprintf("%s = %s", p.Field, quote(p.Value)) }
func (p Contains) String() string { return fmt.Sprintf("%s ~ %q", p.Field, p.Value) }
func (p RangeMin) String() string { return fmt.Sprintf("%s >= %s", p.Field, quote(p.Value)) }
func (p RangeMax) String() string { return fmt.Sprintf("%s <= %s", p.Field, quote(p.Value)) }
func (p MatchNone) String() string {
	return fmt.Sprintf("none(%s = %q)", p.Field, p.Value)
}

func (p Or) String() string {
	parts := make([]string, len(p.Predicates))
	for i, child := range p.Predicates {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

// quote keeps string values delimited so Key never confuses one facet
// containing separators with several facets.
func quote(v interface{}) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", v)
}
