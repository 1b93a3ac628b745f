// Package bus implements the in-process V2V message bus: deterministic
// publication order, synchronous fan-out, and a bounded log of recent
// traffic.
package bus

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mcb1510/v2v-simulator/internal/queue"
	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Subscriber receives every delivered message. Callbacks run synchronously
// on the delivering goroutine and must not block.
type Subscriber interface {
	OnMessage(m v2v.Message)
}

// Option configures a Bus.
type Option func(*config)

type config struct {
	logger      Logger
	logCapacity int
}

// WithLogger attaches a logger for bus lifecycle messages.
func WithLogger(l Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithLogCapacity bounds the recent-message log.
func WithLogCapacity(n int) Option {
	return func(c *config) {
		c.logCapacity = n
	}
}

// Bus carries messages between vehicles and analysis subscribers within a
// tick. Publication order is preserved end to end: Drain and DeliverAll see
// messages exactly as published.
type Bus struct {
	logger  Logger
	pending *queue.Queue[v2v.Message]
	log     *Log

	mu   sync.RWMutex
	subs []Subscriber

	published metric.Int64Counter
	delivered metric.Int64Counter
	depth     metric.Int64ObservableGauge
}

// New creates a Bus.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(opts ...Option) (*Bus, error) {
	cfg := &config{logger: nopLogger{}, logCapacity: DefaultLogCapacity}
	for _, opt := range opts {
		opt(cfg)
	}

	b := &Bus{
		logger:  cfg.logger,
		pending: queue.New[v2v.Message](),
		log:     NewLog(cfg.logCapacity),
	}

	m := meter()

	var err error

	b.published, err = m.Int64Counter(
		"bus.messages.published",
		metric.WithDescription("Total messages published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	b.delivered, err = m.Int64Counter(
		"bus.messages.delivered",
		metric.WithDescription("Total messages delivered to subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}

	b.depth, err = m.Int64ObservableGauge(
		"bus.pending.depth",
		metric.WithDescription("Messages awaiting delivery"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(b.depth, int64(b.pending.Len()))
			return nil
		},
		b.depth,
	)
	if err != nil {
		return nil, fmt.Errorf("registering pending callback: %w", err)
	}

	return b, nil
}

// Subscribe registers a subscriber. Delivery order follows registration
// order.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish appends a message to the current tick's batch.
func (b *Bus) Publish(m v2v.Message) {
	b.pending.Push(m)
	b.published.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", m.MessageKind().String())))
}

// Drain removes and returns all pending messages in publication order.
func (b *Bus) Drain() []v2v.Message {
	return b.pending.Drain()
}

// DeliverAll drains the pending batch and synchronously hands every message
// to each subscriber in registration order, recording it in the bounded
// message log. It returns the number of messages delivered.
func (b *Bus) DeliverAll() int {
	batch := b.pending.Drain()
	if len(batch) == 0 {
		return 0
	}

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, m := range batch {
		for _, s := range subs {
			s.OnMessage(m)
		}
		b.log.Record(m)
		b.delivered.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", m.MessageKind().String())))
	}
	return len(batch)
}

// Pending returns the number of messages awaiting delivery.
func (b *Bus) Pending() int {
	return b.pending.Len()
}

// Recent returns the bounded message log, oldest first.
func (b *Bus) Recent() []v2v.Message {
	return b.log.Recent()
}

// Total returns how many messages have passed through delivery.
func (b *Bus) Total() uint64 {
	return b.log.Total()
}
