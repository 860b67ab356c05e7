package stats

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/sample"
)

// DefaultCapacity bounds the in-memory window when no capacity is configured.
const DefaultCapacity = 10000

// Aggregator keeps a bounded FIFO window of recent samples and derives
// statistics from it. Insertion evicts the oldest sample once the window is
// full. All window access is mutex-guarded; statistics are computed on
// snapshot copies outside the lock so ingestion is never blocked by O(n)
// work.
type Aggregator struct {
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	buf   []sample.Sample // ring buffer, oldest at head
	head  int
	count int
}

// NewAggregator creates an Aggregator retaining at most capacity samples.
// A non-positive capacity falls back to DefaultCapacity.
func NewAggregator(capacity int, logger *zap.Logger) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logger.Info("Aggregator initialized", zap.Int("capacity", capacity))
	return &Aggregator{
		logger: logger,
		now:    time.Now,
		buf:    make([]sample.Sample, capacity),
	}
}

// Add inserts one sample, evicting the oldest when the window is full.
func (a *Aggregator) Add(s sample.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count < len(a.buf) {
		a.buf[(a.head+a.count)%len(a.buf)] = s
		a.count++
		return
	}
	a.buf[a.head] = s
	a.head = (a.head + 1) % len(a.buf)
}

// Len returns the number of currently retained samples.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// All returns a copy of the full retained window in arrival order.
func (a *Aggregator) All() []sample.Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Recent returns a copy of the retained samples whose timestamp lies within
// the last N minutes, in arrival order.
func (a *Aggregator) Recent(minutes int) []sample.Sample {
	cutoff := float64(a.now().UnixNano())/float64(time.Second) - float64(minutes)*60

	a.mu.Lock()
	all := a.snapshotLocked()
	a.mu.Unlock()

	recent := make([]sample.Sample, 0, len(all))
	for _, s := range all {
		if s.Timestamp >= cutoff {
			recent = append(recent, s)
		}
	}
	return recent
}

// RecentStats computes statistics over the last N minutes of samples.
func (a *Aggregator) RecentStats(minutes int) Snapshot {
	return Compute(a.Recent(minutes))
}

// OverallStats computes statistics over the full retained window.
func (a *Aggregator) OverallStats() Snapshot {
	return Compute(a.All())
}

// Clear empties the window.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.head = 0
	a.count = 0
	a.mu.Unlock()
	a.logger.Info("Sample window cleared")
}

// snapshotLocked copies the ring contents in arrival order. Callers must
// hold a.mu.
func (a *Aggregator) snapshotLocked() []sample.Sample {
	out := make([]sample.Sample, a.count)
	for i := 0; i < a.count; i++ {
		out[i] = a.buf[(a.head+i)%len(a.buf)]
	}
	return out
}
