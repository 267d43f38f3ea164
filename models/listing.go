package models

import "time"

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusSold      ListingStatus = "sold"
)

// Listing is a secondhand gear advert in the marketplace.
type Listing struct {
	ID          int           `json:"id"`
	SellerID    int           `json:"seller_id"`
	Title       string        `json:"title"`
	Description *string       `json:"description,omitempty"`
	PriceCents  int           `json:"price_cents"`
	Condition   string        `json:"condition,omitempty"`
	Status      ListingStatus `json:"status"`
	PhotoKey    *string       `json:"-"`
	PhotoURL    *string       `json:"photo_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`

	Seller *User `json:"seller,omitempty"`
}
