package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/safebench/mmbench/internal/domain"
	"github.com/safebench/mmbench/internal/producer"
)

// Sink receives terminal results. Implementations serialize their own
// writes; the dispatcher calls Record from multiple workers.
type Sink interface {
	Record(res *domain.Result) error
}

// Options tunes the worker pool and retry policy.
type Options struct {
	Concurrency int
	MaxAttempts int
	CallTimeout time.Duration
	// QPS limits producer invocations per second across all workers.
	// Zero means unlimited.
	QPS     float64
	Backoff Backoff
}

// Dispatcher drives a task queue through the producer with a fixed-size
// worker pool.
type Dispatcher struct {
	producer   producer.AnswerProducer
	classifier *Classifier
	monitor    *Monitor
	opts       Options
	limiter    *rate.Limiter

	mu          sync.Mutex
	stopReason  domain.StopReason
	stopMessage string
}

// New builds a dispatcher. classifier and monitor may be nil for a
// zero-value classifier and no auto-stop.
func New(p producer.AnswerProducer, classifier *Classifier, monitor *Monitor, opts Options) *Dispatcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Minute
	}
	if classifier == nil {
		classifier = &Classifier{}
	}
	d := &Dispatcher{producer: p, classifier: classifier, monitor: monitor, opts: opts}
	if opts.QPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}
	return d
}

// Run processes the queue until it drains, ctx is cancelled, or the
// monitor trips. Tasks are dispatched in sequence order; completion order
// is whatever the producer allows. Every task that reaches a terminal
// state is recorded exactly once.
func (d *Dispatcher) Run(ctx context.Context, tasks []*domain.Task, sink Sink) (domain.StopReason, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := make(chan *domain.Task)
	go func() {
		defer close(feed)
		for _, task := range tasks {
			select {
			case feed <- task:
			case <-runCtx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < d.opts.Concurrency; i++ {
		g.Go(func() error {
			for task := range feed {
				if err := d.process(gctx, task, sink, cancel); err != nil {
					return err
				}
				if gctx.Err() != nil {
					return nil
				}
			}
			return nil
		})
	}

	err := g.Wait()
	reason, _ := d.Stopped()
	if reason == domain.StopNone && ctx.Err() != nil {
		reason = domain.StopInterrupted
	}
	return reason, err
}

// Stopped returns the auto-stop reason and message, if the monitor tripped.
func (d *Dispatcher) Stopped() (domain.StopReason, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopReason, d.stopMessage
}

// process runs one task to a terminal state, retrying transient failures
// with backoff. An in-flight producer call is never cut short by run
// cancellation; it finishes or hits its own timeout.
func (d *Dispatcher) process(ctx context.Context, task *domain.Task, sink Sink, stop context.CancelFunc) error {
	for {
		if err := task.Dispatch(); err != nil {
			return err
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		callCtx, done := context.WithTimeout(context.WithoutCancel(ctx), d.opts.CallTimeout)
		payload, err := d.producer.Invoke(callCtx, task)
		done()

		outcome := d.classifier.Classify(payload, err)
		if err := task.Resolve(outcome.Kind, d.opts.MaxAttempts); err != nil {
			return err
		}

		if !task.State.Terminal() {
			select {
			case <-time.After(d.opts.Backoff.Delay(task.Attempts)):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		res := &domain.Result{
			Seq:        task.Seq,
			TaskID:     task.Entry.ID,
			Category:   task.Entry.Category,
			Status:     task.State,
			Attempts:   task.Attempts,
			Payload:    outcome.Payload,
			Reason:     outcome.Reason,
			FinishedAt: time.Now().UTC(),
		}
		if err := sink.Record(res); err != nil {
			return fmt.Errorf("recording task %d: %w", task.Seq, err)
		}

		if reason, msg, triggered := d.monitor.Observe(res); triggered {
			d.mu.Lock()
			if d.stopReason == domain.StopNone {
				d.stopReason = reason
				d.stopMessage = msg
			}
			d.mu.Unlock()
			stop()
		}
		return nil
	}
}
