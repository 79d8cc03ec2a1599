package verifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/polycheck/polycheck/pkg/metrics"
)

var ErrClosed = errors.New("orchestrator is closed")

// Orchestrator runs checks on a bounded pool of workers. Checks are
// queued with Submit or TrySubmit; every accepted check yields exactly
// one Result on Results, which is closed once Run returns.
type Orchestrator struct {
	verifier Verifier
	logger   logrus.FieldLogger
	workers  int

	queue   chan Check
	results chan Result

	// mu guards sends on queue against Close.
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	accepted atomic.Int64
	finished atomic.Int64
	progress rate.Sometimes
}

func NewOrchestrator(v Verifier, opts ...Option) *Orchestrator {
	o := newOptions(opts)
	return &Orchestrator{
		verifier: v,
		logger:   o.logger,
		workers:  o.workers,
		queue:    make(chan Check, o.queueSize),
		results:  make(chan Result, o.queueSize),
		done:     make(chan struct{}),
		progress: rate.Sometimes{Interval: 5 * time.Second},
	}
}

// Submit queues c, blocking while the queue is full. It fails when ctx
// is done or the orchestrator is closed first.
func (o *Orchestrator) Submit(ctx context.Context, c Check) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	select {
	case o.queue <- c:
		o.accepted.Add(1)
		metrics.SetQueueDepth(len(o.queue))
		return nil
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues c if there is room and reports whether it did.
func (o *Orchestrator) TrySubmit(c Check) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false
	}
	select {
	case o.queue <- c:
		o.accepted.Add(1)
		metrics.SetQueueDepth(len(o.queue))
		return true
	default:
		o.logger.WithField("history", c.History.Name()).Debug("queue full, dropping check")
		return false
	}
}

// Close stops accepting checks. Checks already queued still run.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		o.mu.Lock()
		defer o.mu.Unlock()
		o.closed = true
		close(o.queue)
	})
}

func (o *Orchestrator) Results() <-chan Result {
	return o.results
}

// Run works through the queue until it is closed and drained. When ctx
// is done the orchestrator closes itself and the remaining checks are
// reported as cancelled without being verified. Callers must keep
// reading Results while Run is active.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.results)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			o.Close()
		case <-stop:
		}
	}()

	var eg errgroup.Group
	eg.SetLimit(o.workers)
	for c := range o.queue {
		c := c
		metrics.SetQueueDepth(len(o.queue))
		eg.Go(func() error {
			o.results <- o.verify(ctx, c)
			o.report()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	o.logger.Infof("finished %d checks", o.finished.Load())
	return ctx.Err()
}

func (o *Orchestrator) verify(ctx context.Context, c Check) Result {
	if err := ctx.Err(); err != nil {
		return Result{
			HistoryID: c.History.Name(),
			Model:     c.Model,
			Verdict:   Error,
			Reason:    Cancelled,
			Error:     err.Error(),
			Phase:     Pending,
		}
	}
	return o.verifier.Verify(ctx, c)
}

func (o *Orchestrator) report() {
	finished := o.finished.Add(1)
	o.progress.Do(func() {
		o.logger.WithField("queued", len(o.queue)).Infof("%d of %d checks finished", finished, o.accepted.Load())
	})
}
