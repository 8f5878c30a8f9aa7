package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
	DefaultTimeout   = 5 * time.Second
)

// Outcome labels for the event and task counters
const (
	ResultRecorded = "recorded"
	ResultFailed   = "failed"
	ResultDropped  = "dropped"
)

// Options configures a Dispatcher. Zero values fall back to the defaults.
type Options struct {
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	LogFailures bool

	// Events and Tasks count outcomes by "result". Unregistered counters are
	// created when nil.
	Events *prometheus.CounterVec
	Tasks  *prometheus.CounterVec
}

type job struct {
	name  string
	event *Event
	fn    func(ctx context.Context) error
}

// Dispatcher runs audit writes and other fire-and-forget work on a bounded
// pool of workers. Dispatch never blocks: when the queue is full the job is
// dropped and counted. Failures are counted and logged, never returned.
type Dispatcher struct {
	sink        Sink
	timeout     time.Duration
	logFailures bool
	events      *prometheus.CounterVec
	tasks       *prometheus.CounterVec

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Events == nil {
		opts.Events = newCounter("ums_audit_events_total")
	}
	if opts.Tasks == nil {
		opts.Tasks = newCounter("ums_background_tasks_total")
	}

	d := &Dispatcher{
		sink:        sink,
		timeout:     opts.Timeout,
		logFailures: opts.LogFailures,
		events:      opts.Events,
		tasks:       opts.Tasks,
		queue:       make(chan job, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.worker(id)
		}(i)
	}
	return d
}

func newCounter(name string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, []string{"result"})
}

// Dispatch queues an audit event. It reports whether the event was accepted.
func (d *Dispatcher) Dispatch(event Event) bool {
	accepted := d.enqueue(job{name: string(event.Type), event: &event})
	if !accepted {
		d.events.WithLabelValues(ResultDropped).Inc()
		d.logFailure("Audit event dropped", "event", event.Type, "entity_id", event.EntityID)
	}
	return accepted
}

// Go queues a background task such as sending an email.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) bool {
	accepted := d.enqueue(job{name: name, fn: fn})
	if !accepted {
		d.tasks.WithLabelValues(ResultDropped).Inc()
		slog.Warn("Background task dropped", "task", name)
	}
	return accepted
}

func (d *Dispatcher) enqueue(j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- j:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits up to timeout for the queue to drain.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit dispatcher shutdown timed out after %v", timeout)
	}
}

func (d *Dispatcher) worker(id int) {
	for j := range d.queue {
		d.run(id, j)
	}
}

func (d *Dispatcher) run(id int, j job) {
	// detached from the request that queued the job
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in worker %d: %v\n%s", id, r, debug.Stack())
			}
		}()
		if j.event != nil {
			return d.sink.Record(ctx, *j.event)
		}
		return j.fn(ctx)
	}()

	if j.event != nil {
		if err != nil {
			d.events.WithLabelValues(ResultFailed).Inc()
			d.logFailure("Audit event failed", "event", j.name, "err", err)
			return
		}
		d.events.WithLabelValues(ResultRecorded).Inc()
		return
	}

	if err != nil {
		d.tasks.WithLabelValues(ResultFailed).Inc()
		slog.Warn("Background task failed", "task", j.name, "err", err)
		return
	}
	d.tasks.WithLabelValues(ResultRecorded).Inc()
}

func (d *Dispatcher) logFailure(msg string, args ...any) {
	if d.logFailures {
		slog.Warn(msg, args...)
		return
	}
	slog.Debug(msg, args...)
}
