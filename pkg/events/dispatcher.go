package events

import (
	"context"
	"sync"

	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/observability/metrics"
)

// Sink receives committed records in sequence order.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Publish(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Dispatcher delivers records to sinks on a background goroutine.
// Enqueue never blocks, so the engine can hand records over while it
// still holds its write lock and commit order is preserved.
type Dispatcher struct {
	sinks []Sink

	mu      sync.Mutex
	queue   []Record
	closed  bool
	signal  chan struct{}
	stopped chan struct{}
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Start runs the delivery loop until Close is called. ctx is passed to
// sinks; cancelling it aborts in-flight publishes but the loop keeps
// draining so Close still returns.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Dispatcher) Enqueue(recs []Record) {
	if len(recs) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logger.Log.WithField("records", len(recs)).Warn("dispatcher closed, dropping events")
		return
	}
	d.queue = append(d.queue, recs...)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Close stops accepting records, waits for the queue to drain and
// returns once the loop has exited.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
	<-d.stopped
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.stopped)
	for {
		<-d.signal

		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, rec := range batch {
			d.deliver(ctx, rec)
		}

		if closed {
			d.mu.Lock()
			remaining := len(d.queue)
			d.mu.Unlock()
			if remaining == 0 {
				return
			}
			select {
			case d.signal <- struct{}{}:
			default:
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, rec Record) {
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, rec); err != nil {
			metrics.ObserveEventFailed()
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"seq":        rec.Seq,
				"event_type": rec.Type(),
			}).Error("failed to deliver event")
			continue
		}
	}
	metrics.ObserveEventDispatched()
}

// LogSink writes every record to the structured log.
func LogSink() Sink {
	return SinkFunc(func(_ context.Context, rec Record) error {
		logger.Log.WithFields(map[string]interface{}{
			"seq":        rec.Seq,
			"event_type": rec.Type(),
			"op":         rec.Op,
			"caller":     rec.Caller,
		}).Debug("event committed")
		return nil
	})
}
