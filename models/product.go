package models

// Product 代表商品目錄中的商品
type Product struct {
	ID    int     `json:"id" validate:"gt=0"`
	Title string  `json:"title" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image"`
}
