// internal/models/listing.go
package models

import "time"

type ListingStatus string

const (
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusApproved ListingStatus = "approved"
	ListingStatusRejected ListingStatus = "rejected"
	ListingStatusInactive ListingStatus = "inactive"
	ListingStatusSold     ListingStatus = "sold"
)

// Listing is the search read model: a listing row joined with its car detail.
type Listing struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Price        float64       `json:"price"`
	Status       ListingStatus `json:"status"`
	IsActive     bool          `json:"isActive"`
	IsFeatured   bool          `json:"isFeatured"`
	ViewCount    int           `json:"viewCount"`
	Location     string        `json:"location,omitempty"`
	City         string        `json:"city,omitempty"`
	State        string        `json:"state,omitempty"`
	Country      string        `json:"country,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	CarDetail    CarDetail     `json:"carDetail"`
	PrimaryImage string        `json:"primaryImage,omitempty"`
	SellerID     string        `json:"sellerId"`
}

type CarDetail struct {
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	BodyType     string   `json:"bodyType"`
	FuelType     string   `json:"fuelType"`
	Transmission string   `json:"transmission"`
	Mileage      int      `json:"mileage"`
	Color        string   `json:"color,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Features     []string `json:"features,omitempty"`
}

// IsPublic reports whether the listing may appear in public search results.
func (l Listing) IsPublic() bool {
	return l.Status == ListingStatusApproved && l.IsActive
}
