package consent

import "sync"

// AnalyticsSignal is the generic analytics consent-mode channel: a binary
// granted/denied update for the analytics-storage category plus a
// configuration call carrying the measurement identifier. Implementations
// must be idempotent and safe to call before the downstream analytics
// script has loaded.
type AnalyticsSignal interface {
	ConsentUpdate(granted bool)
	Configure(measurementID string, debug bool)
}

// signalCall is one buffered downstream call.
type signalCall struct {
	config        bool
	granted       bool
	measurementID string
	debug         bool
}

// QueuedSignal buffers calls until a sink attaches, then replays them in
// order. This mirrors the queue-before-loaded contract of tag managers:
// calling early never fails, it just queues.
type QueuedSignal struct {
	mu      sync.Mutex
	sink    AnalyticsSignal
	pending []signalCall
}

// NewQueuedSignal returns a signal with no sink attached.
func NewQueuedSignal() *QueuedSignal {
	return &QueuedSignal{}
}

// Attach connects the real downstream signal and flushes everything queued
// so far, in call order.
func (q *QueuedSignal) Attach(sink AnalyticsSignal) {
	q.mu.Lock()
	q.sink = sink
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, c := range pending {
		if c.config {
			sink.Configure(c.measurementID, c.debug)
		} else {
			sink.ConsentUpdate(c.granted)
		}
	}
}

// ConsentUpdate forwards or queues a granted/denied update.
func (q *QueuedSignal) ConsentUpdate(granted bool) {
	q.mu.Lock()
	sink := q.sink
	if sink == nil {
		q.pending = append(q.pending, signalCall{granted: granted})
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()
	sink.ConsentUpdate(granted)
}

// Configure forwards or queues the measurement-ID configuration call.
func (q *QueuedSignal) Configure(measurementID string, debug bool) {
	q.mu.Lock()
	sink := q.sink
	if sink == nil {
		q.pending = append(q.pending, signalCall{config: true, measurementID: measurementID, debug: debug})
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()
	sink.Configure(measurementID, debug)
}
