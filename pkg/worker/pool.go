// Package worker provides an asynchronous worker pool that delivers turn
// events to an eventstream.Publisher off the agent loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/tether/pkg/eventstream"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// ErrQueueFull is returned by PublishTurn when the event had to be dropped.
var ErrQueueFull = errors.New("event queue full, event dropped")

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every event. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single delivery (defaults to 10s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes turn events asynchronously via a worker pool.
// It implements eventstream.Publisher itself.
type Pool struct {
	config *Config
	queue  chan *eventstream.TurnCompletedEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error

	mu     sync.RWMutex
	closed bool
}

var _ eventstream.Publisher = (*Pool)(nil)

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.TurnCompletedEvent, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits an event for delivery.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the event being dropped.
func (p *Pool) Enqueue(event *eventstream.TurnCompletedEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("event not queued, pool closed", "event_id", event.EventID)
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			"event_id", event.EventID,
			"conversation_id", event.ConversationID,
		)
		return true
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			"event_id", event.EventID,
			"conversation_id", event.ConversationID,
		)
		return false
	}
}

// PublishTurn enqueues the event without blocking.
func (p *Pool) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	if !p.Enqueue(event) {
		return ErrQueueFull
	}
	return nil
}

// Close stops accepting events, waits for queued events to drain and then
// closes the underlying publisher.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		p.closeErr = p.config.Publisher.Close()
	})
	return p.closeErr
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// publish delivers one event. Failures are logged and never retried.
func (p *Pool) publish(event *eventstream.TurnCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Error("turn event delivery failed",
			"event_id", event.EventID,
			"conversation_id", event.ConversationID,
			"error", err,
		)
		return
	}

	p.logger.Debug("turn event delivered",
		"event_id", event.EventID,
		"conversation_id", event.ConversationID,
	)
}
