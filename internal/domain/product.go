package domain

import (
	"slices"
	"time"
)

// Product status constants.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
	ProductStatusArchived  = "archived"
)

// Product is a catalog entry referenced by wishlists. Prices are in minor
// units of Currency.
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Niche           string    `json:"niche,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	InitialPrice    int64     `json:"initial_price"`
	DiscountedPrice *int64    `json:"discounted_price,omitempty"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectivePrice is the discounted price when one is set and lower than
// the initial price.
func (p *Product) EffectivePrice() int64 {
	if p.DiscountedPrice != nil && *p.DiscountedPrice < p.InitialPrice {
		return *p.DiscountedPrice
	}
	return p.InitialPrice
}

func ValidStatuses() []string {
	return []string{ProductStatusDraft, ProductStatusPublished, ProductStatusArchived}
}

// IsValidStatus checks whether the given status string is a valid product status.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Category string
	Status   string
}

// Product search sort orders.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

func ValidSorts() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortNewest}
}

func IsValidSort(sort string) bool {
	return slices.Contains(ValidSorts(), sort)
}

// ProductSearch is a full-text catalog query. Price bounds apply to the
// effective price.
type ProductSearch struct {
	Text     string
	Category string
	Status   string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}
