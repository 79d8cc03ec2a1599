package verifier

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycheck/polycheck/pkg/consistency"
)

type verifierFunc func(context.Context, Check) Result

func (f verifierFunc) Verify(ctx context.Context, c Check) Result {
	return f(ctx, c)
}

func collect(o *Orchestrator) []Result {
	var rs []Result
	for r := range o.Results() {
		rs = append(rs, r)
	}
	return rs
}

func TestOrchestratorOneResultPerCheck(t *testing.T) {
	var calls atomic.Int32
	o := NewOrchestrator(verifierFunc(func(_ context.Context, c Check) Result {
		calls.Add(1)
		return Result{HistoryID: c.History.Name(), Model: c.Model, Verdict: Satisfied, Phase: Done}
	}), WithWorkers(3), WithQueueSize(2))

	done := make(chan error)
	go func() {
		done <- o.Run(context.Background())
	}()
	go func() {
		defer o.Close()
		for _, m := range consistency.Models {
			assert.NoError(t, o.Submit(context.Background(), Check{History: serial(), Model: m}))
		}
	}()

	rs := collect(o)
	require.NoError(t, <-done)
	assert.Len(t, rs, len(consistency.Models))
	assert.EqualValues(t, len(consistency.Models), calls.Load())

	seen := make(map[consistency.Model]bool)
	for _, r := range rs {
		seen[r.Model] = true
	}
	assert.Len(t, seen, len(consistency.Models))
}

func TestOrchestratorTrySubmit(t *testing.T) {
	o := NewOrchestrator(verifierFunc(func(_ context.Context, c Check) Result {
		return Result{HistoryID: c.History.Name(), Model: c.Model, Verdict: Satisfied}
	}), WithQueueSize(1))

	check := Check{History: serial(), Model: consistency.ReadCommitted}
	assert.True(t, o.TrySubmit(check))
	assert.False(t, o.TrySubmit(check), "queue is full")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, o.Submit(ctx, check))

	o.Close()
	assert.False(t, o.TrySubmit(check))
	assert.Equal(t, ErrClosed, o.Submit(context.Background(), check))

	require.NoError(t, o.Run(context.Background()))
	assert.Len(t, collect(o), 1)
}

func TestOrchestratorSubmitUnblocksOnClose(t *testing.T) {
	o := NewOrchestrator(verifierFunc(func(_ context.Context, c Check) Result {
		return Result{}
	}), WithQueueSize(1))
	check := Check{History: serial(), Model: consistency.ReadCommitted}
	require.NoError(t, o.Submit(context.Background(), check))

	errs := make(chan error)
	go func() {
		errs <- o.Submit(context.Background(), check)
	}()
	time.Sleep(10 * time.Millisecond)
	o.Close()
	assert.Equal(t, ErrClosed, <-errs)
}

func TestOrchestratorDrainsCancelledChecks(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int32
	o := NewOrchestrator(verifierFunc(func(ctx context.Context, c Check) Result {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-ctx.Done()
		return Result{HistoryID: c.History.Name(), Model: c.Model, Verdict: Error, Reason: Cancelled}
	}), WithWorkers(1), WithQueueSize(4))

	for _, m := range consistency.Models[:3] {
		require.True(t, o.TrySubmit(Check{History: serial(), Model: m}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- o.Run(ctx)
	}()
	<-started
	cancel()

	rs := collect(o)
	assert.Equal(t, context.Canceled, <-done)
	require.Len(t, rs, 3)
	for _, r := range rs {
		assert.Equal(t, Error, r.Verdict)
		assert.Equal(t, Cancelled, r.Reason)
	}
	assert.EqualValues(t, 1, calls.Load(), "queued checks are not verified after cancellation")
}

func TestOrchestratorTimeoutFreesWorker(t *testing.T) {
	p := NewPipeline(WithBackend(blockingBackend(t, 3)), WithTimeout(10*time.Millisecond))
	o := NewOrchestrator(p, WithWorkers(1), WithQueueSize(3))
	for _, m := range consistency.Models[:3] {
		require.True(t, o.TrySubmit(Check{History: serial(), Model: m}))
	}
	o.Close()

	require.NoError(t, o.Run(context.Background()))
	rs := collect(o)
	require.Len(t, rs, 3)
	for _, r := range rs {
		assert.Equal(t, Timeout, r.Verdict)
		assert.Equal(t, SolverTimeout, r.Reason)
	}
}
