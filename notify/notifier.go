// Package notify delivers user-facing cart notifications (the "toasts").
package notify

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"goflare.io/cartstore/models"
)

type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

var (
	_ Notifier = (*Logger)(nil)
	_ Notifier = (*Recorder)(nil)
	_ Notifier = Multi(nil)
)

// Logger writes notifications to the log.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Notify(_ context.Context, n models.Notification) {
	l.logger.Warn(n.Message,
		zap.String("operation", string(n.Operation)),
		zap.String("kind", string(n.Kind)),
		zap.Int("product_id", n.ProductID))
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) Notifications() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notifications)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n models.Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}
