package models

import (
	"time"

	"github.com/google/uuid"

	"goflare.io/cartstore/models/enum"
)

type CartEvent struct {
	ID           string         `json:"id"`
	Type         enum.EventType `json:"type"`
	Cart         Cart           `json:"cart"`
	Notification *Notification  `json:"notification,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Notification is a user-facing message produced by a failed cart operation.
type Notification struct {
	Operation enum.Operation   `json:"operation"`
	Kind      enum.FailureKind `json:"kind"`
	ProductID int              `json:"product_id"`
	Message   string           `json:"message"`
}

func NewCartChangedEvent(cart Cart) *CartEvent {
	return &CartEvent{
		ID:         uuid.NewString(),
		Type:       enum.EventTypeCartChanged,
		Cart:       cart,
		OccurredAt: time.Now().UTC(),
	}
}

func NewNotificationEvent(n Notification) *CartEvent {
	return &CartEvent{
		ID:           uuid.NewString(),
		Type:         enum.EventTypeNotification,
		Notification: &n,
		OccurredAt:   time.Now().UTC(),
	}
}
