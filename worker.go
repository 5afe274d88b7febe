package cartstore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"goflare.io/cartstore/models"
)

const defaultQueueSize = 1000

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *models.CartEvent) error
}

type WorkerPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	logger    *zap.Logger
	processor EventProcessor
}

func NewWorkerPool(size int, processor EventProcessor, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	wp := &WorkerPool{
		tasks:     make(chan func(), defaultQueueSize),
		logger:    logger,
		processor: processor,
	}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit queues event for processing. It blocks while the queue is full and
// drops the event once ctx is done or the pool has been shut down.
func (wp *WorkerPool) Submit(ctx context.Context, event *models.CartEvent) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		wp.logger.Warn("Worker pool closed, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
		return
	}

	task := func() {
		if err := wp.processor.ProcessEvent(ctx, event); err != nil {
			wp.logger.Error("Failed to process event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID))
		}
	}

	select {
	case wp.tasks <- task:
	case <-ctx.Done():
		wp.logger.Warn("Context done, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(ctx.Err()))
	}
}

// Shutdown stops accepting events and waits until the queued ones are processed.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
}
