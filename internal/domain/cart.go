package domain

import "time"

// CartItem is one product line of a stored cart. Only the product id and
// quantity are kept; names and prices are read from the catalog on every
// view so the cart never shows a stale price.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is the per-user shopping cart. Version increases on every save and
// guards concurrent writers.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}}
}

// FindItemIndex returns the index of productID in the cart, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// SetQuantity sets the quantity of productID, appending a new line when
// the product is absent. A zero quantity removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) {
	i := c.FindItemIndex(productID)
	switch {
	case quantity <= 0:
		if i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
	case i >= 0:
		c.Items[i].Quantity = quantity
	default:
		c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
	}
}

// RemoveItem drops productID and reports whether it was present.
func (c *Cart) RemoveItem(productID string) bool {
	i := c.FindItemIndex(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// CartLine is a cart item with its product resolved from the catalog.
type CartLine struct {
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	Subtotal  int64   `json:"subtotal"`
}

// CartView is what clients see: resolved lines in cart order plus totals
// computed from effective prices.
type CartView struct {
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"item_count"`
	Total     int64      `json:"total"`
	Currency  string     `json:"currency,omitempty"`
}

// NewCartView prices lines and sums them. Items is never nil.
func NewCartView(lines []CartLine) *CartView {
	v := &CartView{Items: make([]CartLine, 0, len(lines))}
	for _, l := range lines {
		l.UnitPrice = l.Product.EffectivePrice()
		l.Subtotal = l.UnitPrice * int64(l.Quantity)
		v.Items = append(v.Items, l)
		v.ItemCount += l.Quantity
		v.Total += l.Subtotal
		if v.Currency == "" {
			v.Currency = l.Product.Currency
		}
	}
	return v
}
