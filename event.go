package cartstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
	"goflare.io/cartstore/notify"
)

const (
	SubjectCartChanged  = "cart.event.changed"
	SubjectNotification = "cart.event.notification"
	subjectAllEvents    = "cart.event.>"
)

var _ notify.Notifier = (*EventManager)(nil)

// NATSConn is the part of *nats.Conn the event manager uses.
type NATSConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type EventHandler func(context.Context, *models.CartEvent) error

// EventManager publishes cart changes and notifications to NATS and dispatches
// events received from NATS to registered handlers.
type EventManager struct {
	natsConn NATSConn
	handlers map[enum.EventType]EventHandler
	outbound *WorkerPool
	inbound  *WorkerPool
	logger   *zap.Logger
}

func NewEventManager(natsConn NATSConn, logger *zap.Logger) *EventManager {
	em := &EventManager{
		natsConn: natsConn,
		handlers: make(map[enum.EventType]EventHandler),
		logger:   logger,
	}
	// A single publishing worker keeps events in commit order.
	em.outbound = NewWorkerPool(1, &eventPublisher{natsConn: natsConn}, logger)
	em.inbound = NewWorkerPool(4, em, logger)
	return em
}

// RegisterHandler must be called before SubscribeToEvents.
func (em *EventManager) RegisterHandler(eventType enum.EventType, handler EventHandler) {
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType enum.EventType) (EventHandler, bool) {
	handler, exists := em.handlers[eventType]
	return handler, exists
}

// CartChanged is meant to be registered with Store.Subscribe.
func (em *EventManager) CartChanged(cart models.Cart) {
	em.outbound.Submit(context.Background(), models.NewCartChangedEvent(cart))
}

func (em *EventManager) Notify(ctx context.Context, n models.Notification) {
	em.outbound.Submit(context.WithoutCancel(ctx), models.NewNotificationEvent(n))
}

func (em *EventManager) SubscribeToEvents() (*nats.Subscription, error) {
	return em.natsConn.Subscribe(subjectAllEvents, func(msg *nats.Msg) {
		var event models.CartEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}

		em.inbound.Submit(context.Background(), &event)
	})
}

// ProcessEvent dispatches an inbound event to its handler.
func (em *EventManager) ProcessEvent(ctx context.Context, event *models.CartEvent) error {
	handler, exists := em.GetHandler(event.Type)
	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", event.Type)
	}

	if err := handler(ctx, event); err != nil {
		return fmt.Errorf("handler for %s failed: %w", event.Type, err)
	}

	em.logger.Debug("Cart event processed", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	return nil
}

// Close waits for queued events to be published and handled.
func (em *EventManager) Close() {
	em.outbound.Shutdown()
	em.inbound.Shutdown()
}

type eventPublisher struct {
	natsConn NATSConn
}

func (p *eventPublisher) ProcessEvent(_ context.Context, event *models.CartEvent) error {
	subject, err := subjectFor(event.Type)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = p.natsConn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

func subjectFor(eventType enum.EventType) (string, error) {
	switch eventType {
	case enum.EventTypeCartChanged:
		return SubjectCartChanged, nil
	case enum.EventTypeNotification:
		return SubjectNotification, nil
	default:
		return "", fmt.Errorf("unknown event type: %s", eventType)
	}
}
