package stream

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/sample"
)

// Dispatcher fans accepted samples out to subscriber channels. Publishing
// never blocks: a subscriber whose buffer is full misses the sample (the
// stream is live data; stale readings have no value to an overlay).
type Dispatcher struct {
	logger  *zap.Logger
	dropped atomic.Int64

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan sample.Sample
	once sync.Once
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribe registers a new consumer with the given channel buffer depth and
// returns its receive channel plus a cancel function. Cancelling closes the
// channel and stops delivery; it is safe to call more than once.
func (d *Dispatcher) Subscribe(buffer int) (<-chan sample.Sample, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan sample.Sample, buffer)}

	d.mu.Lock()
	d.subs[sub] = struct{}{}
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		_, ok := d.subs[sub]
		delete(d.subs, sub)
		d.mu.Unlock()
		if ok {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	return sub.ch, cancel
}

// Publish delivers one sample to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (d *Dispatcher) Publish(s sample.Sample) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for sub := range d.subs {
		select {
		case sub.ch <- s:
		default:
			d.dropped.Add(1)
		}
	}
}

// Dropped returns the total number of per-subscriber deliveries skipped
// because of a full buffer.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Count returns the number of active subscribers.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close removes and closes every subscriber channel.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for sub := range d.subs {
		delete(d.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}
