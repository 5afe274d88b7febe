package models

// Stock is the remote view of how many units of a product are available.
type Stock struct {
	ID     int `json:"id" validate:"gte=0"`
	Amount int `json:"amount" validate:"gte=0"`
}
