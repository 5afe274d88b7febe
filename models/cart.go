package models

import (
	"fmt"
	"slices"
)

// LineItem 代表購物車中的單個商品項目
type LineItem struct {
	ID     int     `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Amount int     `json:"amount"`
}

// Cart is the ordered list of line items. A Cart value is never mutated in place;
// every change produces a new slice.
type Cart []LineItem

// UpdateProductAmount is the input of an amount change.
type UpdateProductAmount struct {
	ProductID int `json:"product_id"`
	Amount    int `json:"amount"`
}

func NewLineItem(product *Product) LineItem {
	return LineItem{
		ID:     product.ID,
		Title:  product.Title,
		Price:  product.Price,
		Image:  product.Image,
		Amount: 1,
	}
}

// Find returns the item with the given product id.
func (c Cart) Find(productID int) (LineItem, bool) {
	for _, item := range c {
		if item.ID == productID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Amount returns the held amount of a product, 0 when absent.
func (c Cart) Amount(productID int) int {
	item, _ := c.Find(productID)
	return item.Amount
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	return slices.Clone(c)
}

// WithAmount returns a copy where the matching item carries the given amount.
// Items with other ids are copied unchanged.
func (c Cart) WithAmount(productID, amount int) Cart {
	next := make(Cart, len(c))
	for i, item := range c {
		if item.ID == productID {
			item.Amount = amount
		}
		next[i] = item
	}
	return next
}

// Append returns a copy with item added at the end.
func (c Cart) Append(item LineItem) Cart {
	next := make(Cart, 0, len(c)+1)
	next = append(next, c...)
	return append(next, item)
}

// Without returns a copy with every item of productID filtered out.
func (c Cart) Without(productID int) Cart {
	next := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ID != productID {
			next = append(next, item)
		}
	}
	return next
}

// Validate checks the cart invariants: unique ids and positive amounts.
func (c Cart) Validate() error {
	seen := make(map[int]struct{}, len(c))
	for _, item := range c {
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("duplicate line item for product %d", item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Amount <= 0 {
			return fmt.Errorf("line item for product %d has non-positive amount %d", item.ID, item.Amount)
		}
	}
	return nil
}
