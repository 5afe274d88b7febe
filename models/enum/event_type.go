package enum

type EventType string

const (
	EventTypeCartChanged  EventType = "cart.changed"
	EventTypeNotification EventType = "cart.notification"
)
