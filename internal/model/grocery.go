package model

import "time"

type GroceryList struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type GroceryItem struct {
	ID        string     `json:"id"`
	ListID    string     `json:"list_id"`
	Title     string     `json:"title"`
	Quantity  string     `json:"quantity"`
	Note      string     `json:"note"`
	Category  string     `json:"category"`
	Checked   bool       `json:"checked"`
	CheckedBy string     `json:"checked_by"`
	CheckedAt *time.Time `json:"checked_at"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PurchaseRecord aggregates every check-off of one normalized title in a space.
type PurchaseRecord struct {
	ID              string    `json:"id"`
	SpaceID         string    `json:"space_id"`
	NormalizedTitle string    `json:"normalized_title"`
	DisplayTitle    string    `json:"display_title"`
	Quantity        string    `json:"quantity"`
	Category        string    `json:"category"`
	PurchaseCount   int       `json:"purchase_count"`
	LastPurchasedAt time.Time `json:"last_purchased_at"`
	CreatedAt       time.Time `json:"created_at"`
}
