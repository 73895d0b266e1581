// Package dispatch implements an in-process at-least-once event
// dispatcher: a buffered queue with a background broker and a worker pool
// that redelivers failed handler invocations.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
)

// Kind names a trigger.
type Kind string

const (
	KindOrderCreated Kind = "order.created"
	KindAuditCreated Kind = "audit.created"
)

// Event is one delivery. Exactly one payload field is set, matching Kind.
type Event struct {
	ID      string
	Kind    Kind
	Order   model.Order
	Entry   model.AuditLogEntry
	Attempt int
}

// queue is a simple buffered event queue with a background broker.
type queue struct {
	mu           sync.Mutex
	backlog      []Event
	notify       chan struct{}
	out          chan Event
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

func newQueue(outBuffer int) *queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &queue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event, outBuffer),
	}
}

func (q *queue) start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

// broker moves backlog items to the output channel.
func (q *queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.flushOnce()
		if highWatermark > 0 {
			if sz := q.backlogSize(); sz > highWatermark {
				obs.Logger.Warn("queue backlog exceeds high watermark",
					zap.Int("backlog_size", sz),
					zap.Int("high_watermark", highWatermark),
				)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce drains backlog into the output buffer.
func (q *queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) > 0 && len(q.out) < cap(q.out) {
		item := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.out <- item
	}
}

func (q *queue) enqueue(ev Event) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, ev)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) backlogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

func (q *queue) depth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

func (q *queue) metrics() (enq, proc uint64, backlog, depth int) {
	enq = q.enqueued.Load()
	proc = q.processed.Load()
	backlog = q.backlogSize()
	depth = q.depth()
	return enq, proc, backlog, depth
}

func (q *queue) closeIntake() { q.shuttingDown.Store(true) }

func (q *queue) isShuttingDown() bool { return q.shuttingDown.Load() }
