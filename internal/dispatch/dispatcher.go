package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/config"
	"github.com/greenstem/order-pipeline/internal/metrics"
	"github.com/greenstem/order-pipeline/internal/obs"
)

// Handler processes one delivery. Returning an error requests
// redelivery, so handlers must be safe to re-execute.
type Handler func(ctx context.Context, ev Event) error

type registration struct {
	name string
	fn   Handler
}

// Dispatcher owns delivery and scheduling: handlers stay pure functions
// from event to error. Each event fans out to every handler registered
// for its kind; any failure redelivers the whole event with backoff up to
// the attempt cap.
type Dispatcher struct {
	cfg config.Config
	q   *queue
	met *metrics.Pipeline

	mu       sync.Mutex
	handlers map[Kind][]registration

	ctx          context.Context
	cancel       context.CancelFunc
	retryPending atomic.Int64
}

// New constructs a Dispatcher. met may be nil in tests.
func New(cfg config.Config, met *metrics.Pipeline) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		q:        newQueue(128),
		met:      met,
		handlers: make(map[Kind][]registration),
	}
}

// Register binds a named handler to a kind. Must be called before Start.
func (d *Dispatcher) Register(kind Kind, name string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], registration{name: name, fn: fn})
}

// Start begins the broker and worker pool in the background.
func (d *Dispatcher) Start(parent context.Context) {
	d.ctx, d.cancel = context.WithCancel(parent)
	d.q.start(d.ctx, d.cfg.QueueHighWatermark)
	n := d.cfg.DispatchWorkers
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		go d.worker(d.ctx)
	}
}

// Stop cancels background routines.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Publish enqueues an event for delivery. The event id is assigned when
// the caller left it empty.
func (d *Dispatcher) Publish(ev Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Attempt == 0 {
		ev.Attempt = 1
	}
	return d.q.enqueue(ev)
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.q.out:
			d.deliver(ctx, ev)
			d.q.processed.Add(1)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	d.mu.Lock()
	regs := d.handlers[ev.Kind]
	d.mu.Unlock()

	failed := false
	for _, reg := range regs {
		err := reg.fn(ctx, ev)
		d.countHandler(reg.name, err)
		if err != nil {
			failed = true
			obs.Logger.Error("handler_failed",
				zap.String("event_id", ev.ID),
				zap.String("kind", string(ev.Kind)),
				zap.String("handler", reg.name),
				zap.Int("attempt", ev.Attempt),
				zap.Error(err),
			)
		}
	}
	if !failed {
		return
	}
	if ev.Attempt >= d.maxAttempts() {
		obs.Logger.Error("event_dropped",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Int("attempts", ev.Attempt),
		)
		if d.met != nil {
			d.met.EventsProcessed.WithLabelValues("dispatch", "dropped").Inc()
		}
		return
	}
	d.redeliver(ev)
}

// redeliver re-enqueues ev after the configured backoff. The pending
// counter keeps DrainUntil honest while the timer is armed.
func (d *Dispatcher) redeliver(ev Event) {
	ev.Attempt++
	d.retryPending.Add(1)
	time.AfterFunc(d.cfg.DispatchBackoff, func() {
		defer d.retryPending.Add(-1)
		if !d.q.enqueue(ev) {
			obs.Logger.Warn("redelivery_rejected",
				zap.String("event_id", ev.ID),
				zap.String("kind", string(ev.Kind)),
			)
		}
	})
}

func (d *Dispatcher) maxAttempts() int {
	if d.cfg.DispatchMaxAttempts <= 0 {
		return 1
	}
	return d.cfg.DispatchMaxAttempts
}

func (d *Dispatcher) countHandler(name string, err error) {
	if d.met == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	d.met.EventsProcessed.WithLabelValues(name, outcome).Inc()
}

// BacklogSize returns pending items in the queue.
func (d *Dispatcher) BacklogSize() int { return d.q.backlogSize() }

// QueueDepth returns backlog plus buffered output items.
func (d *Dispatcher) QueueDepth() int { return d.q.depth() }

// QueueMetrics exposes the underlying queue counters.
func (d *Dispatcher) QueueMetrics() (enq, proc uint64, backlog, depth int) {
	return d.q.metrics()
}

// IsShuttingDown reports whether new publishes are rejected.
func (d *Dispatcher) IsShuttingDown() bool { return d.q.isShuttingDown() }

// CloseIntake disallows future publishes.
func (d *Dispatcher) CloseIntake() { d.q.closeIntake() }

// DrainUntil blocks until every delivery, including armed redeliveries,
// has settled, or ctx is done.
func (d *Dispatcher) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc, backlog, depth := d.q.metrics()
		if backlog == 0 && depth == 0 && enq == proc && d.retryPending.Load() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
