// internal/models/metadata.go
package models

type MetadataType string

const (
	MetadataFuelType         MetadataType = "fuel_type"
	MetadataTransmissionType MetadataType = "transmission_type"
	MetadataBodyType         MetadataType = "body_type"
	MetadataCondition        MetadataType = "condition"
	MetadataPriceType        MetadataType = "price_type"
	MetadataCarFeature       MetadataType = "car_feature"
	MetadataColor            MetadataType = "color"
)

// MetadataItem is one admin-managed vocabulary value. Value is stored lowercase.
type MetadataItem struct {
	ID           string       `json:"id" db:"id"`
	Type         MetadataType `json:"type" db:"type"`
	Value        string       `json:"value" db:"value"`
	DisplayValue string       `json:"displayValue" db:"display_value"`
	SortOrder    int          `json:"sortOrder" db:"sort_order"`
}

type CarMake struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	DisplayName string `json:"displayName" db:"display_name"`
	LogoURL     string `json:"logoUrl,omitempty" db:"logo_url"`
	SortOrder   int    `json:"sortOrder" db:"sort_order"`
}

type CarModel struct {
	ID          string `json:"id" db:"id"`
	MakeID      string `json:"makeId" db:"make_id"`
	Name        string `json:"name" db:"name"`
	DisplayName string `json:"displayName" db:"display_name"`
	SortOrder   int    `json:"sortOrder" db:"sort_order"`
}

// AllMetadata is the combined vocabulary served by /metadata/all.
type AllMetadata struct {
	FuelTypes         []MetadataItem `json:"fuelTypes"`
	TransmissionTypes []MetadataItem `json:"transmissionTypes"`
	BodyTypes         []MetadataItem `json:"bodyTypes"`
	Conditions        []MetadataItem `json:"conditions"`
	PriceTypes        []MetadataItem `json:"priceTypes"`
	CarFeatures       []MetadataItem `json:"carFeatures"`
	Colors            []MetadataItem `json:"colors"`
	Makes             []CarMake      `json:"makes"`
}
