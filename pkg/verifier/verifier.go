package verifier

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/graph"
	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/solver"
)

type Verdict string

const (
	Satisfied Verdict = "Satisfied"
	Violated  Verdict = "Violated"
	// Timeout is inconclusive: the check ran out of time or was too
	// large to attempt.
	Timeout Verdict = "Timeout"
	Error   Verdict = "Error"
)

// Reason qualifies a verdict that did not come straight from the solver.
type Reason string

const (
	MalformedHistory    Reason = "MalformedHistory"
	TriviallyViolated   Reason = "TriviallyViolated"
	EncodingTooLarge    Reason = "EncodingTooLarge"
	SolverTimeout       Reason = "SolverTimeout"
	SolverInternalError Reason = "SolverInternalError"
	Cancelled           Reason = "Cancelled"
	InvalidResult       Reason = "InvalidResult"
)

type Phase string

const (
	Pending  Phase = "Pending"
	Building Phase = "Building"
	Encoding Phase = "Encoding"
	Solving  Phase = "Solving"
	Done     Phase = "Done"
)

// Check asks whether a history satisfies a model.
type Check struct {
	History *history.History
	Model   consistency.Model
}

func (c Check) String() string {
	return c.History.Name() + "/" + c.Model.String()
}

// Result is the outcome of one check. Phase is Done for conclusive
// verdicts and the phase the check stopped in otherwise.
type Result struct {
	HistoryID      string                      `json:"history"`
	Model          consistency.Model           `json:"model"`
	Verdict        Verdict                     `json:"verdict"`
	Reason         Reason                      `json:"reason,omitempty"`
	Error          string                      `json:"error,omitempty"`
	Phase          Phase                       `json:"phase"`
	Elapsed        time.Duration               `json:"elapsed"`
	Stats          consistency.Stats           `json:"stats"`
	Witness        *consistency.Witness        `json:"witness,omitempty"`
	Counterexample *consistency.Counterexample `json:"counterexample,omitempty"`
}

// Conclusive reports whether the verdict answers the check.
func (r Result) Conclusive() bool {
	return r.Verdict == Satisfied || r.Verdict == Violated
}

type Verifier interface {
	Verify(ctx context.Context, c Check) Result
}

// Pipeline verifies a check by building its dependency graph, encoding
// the model over it and handing the encoding to a Backend.
type Pipeline struct {
	backend    Backend
	logger     logrus.FieldLogger
	timeout    time.Duration
	maxClauses int
	validate   bool
}

var _ Verifier = &Pipeline{}

func NewPipeline(opts ...Option) *Pipeline {
	o := newOptions(opts)
	backend := o.backend
	if backend == nil {
		backend = NewSATBackend(o.logger, solver.WithCoreBound(o.coreBound))
	}
	return &Pipeline{
		backend:    backend,
		logger:     o.logger,
		timeout:    o.timeout,
		maxClauses: o.maxClauses,
		validate:   o.validate,
	}
}

func (p *Pipeline) Verify(ctx context.Context, c Check) (r Result) {
	start := time.Now()
	r = Result{HistoryID: c.History.Name(), Model: c.Model, Phase: Pending}
	logger := p.logger.WithFields(logrus.Fields{"history": r.HistoryID, "model": c.Model.String()})
	defer func() {
		r.Elapsed = time.Since(start)
		logger.WithFields(logrus.Fields{"verdict": r.Verdict, "phase": r.Phase}).Debugf("check finished in %s", r.Elapsed)
	}()

	if err := ctx.Err(); err != nil {
		return r.failed(Error, Cancelled, err)
	}
	parent := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	r.Phase = Building
	g, err := graph.FromHistory(c.History)
	if err != nil {
		return r.failed(classify(parent, err))
	}

	r.Phase = Encoding
	enc, err := consistency.Encode(g, c.Model, consistency.WithMaxClauses(p.maxClauses))
	if tv, ok := consistency.IsTriviallyViolated(err); ok {
		r.Verdict, r.Reason, r.Phase = Violated, TriviallyViolated, Done
		r.Counterexample = tv.Counterexample()
		return p.validated(g, r)
	}
	if err != nil {
		return r.failed(classify(parent, err))
	}
	r.Stats = enc.Stats()
	logger.WithField("phase", Solving).Debugf("encoded %d variables, %d clauses", r.Stats.Variables, r.Stats.Clauses())

	r.Phase = Solving
	w, cx, err := p.backend.Solve(ctx, enc)
	if err != nil {
		return r.failed(classify(parent, err))
	}
	r.Phase = Done
	switch {
	case w != nil:
		r.Verdict, r.Witness = Satisfied, w
	case cx != nil:
		r.Verdict, r.Counterexample = Violated, cx
	default:
		return r.failed(Error, SolverInternalError, errors.New("backend returned neither a witness nor a counterexample"))
	}
	return p.validated(g, r)
}

// validated re-checks a conclusive result against the model definition.
func (p *Pipeline) validated(g *graph.Graph, r Result) Result {
	if !p.validate {
		return r
	}
	var err error
	if r.Witness != nil {
		err = consistency.ValidateWitness(g, r.Model, r.Witness)
	} else {
		err = consistency.ValidateCounterexample(g, r.Counterexample)
	}
	if err != nil {
		return r.failed(Error, InvalidResult, errors.Wrapf(err, "%s result does not validate", r.Verdict))
	}
	return r
}

func (r Result) failed(v Verdict, reason Reason, err error) Result {
	r.Verdict, r.Reason = v, reason
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// classify maps a failed check to its verdict. parent is the context the
// check was started with, so that a caller's cancellation is not taken
// for a timeout.
func classify(parent context.Context, err error) (Verdict, Reason, error) {
	cause := errors.Cause(err)
	switch {
	case history.IsMalformed(err):
		return Error, MalformedHistory, err
	case consistency.IsEncodingTooLarge(err), cause == solver.ErrEncodingTooLarge:
		return Timeout, EncodingTooLarge, err
	case errors.Is(parent.Err(), context.Canceled):
		return Error, Cancelled, err
	case cause == solver.ErrIncomplete, cause == context.DeadlineExceeded:
		return Timeout, SolverTimeout, err
	}
	return Error, SolverInternalError, err
}

type options struct {
	logger             logrus.FieldLogger
	backend            Backend
	timeout            time.Duration
	maxClauses         int
	coreBound          int
	validate           bool
	workers            int
	queueSize          int
	maxCounterexamples int
	instrument         bool
}

// Option configures a Pipeline, an Orchestrator or VerifyAll. Options
// that do not apply to the component they are passed to are ignored.
type Option func(*options)

const (
	DefaultWorkers            = 4
	DefaultQueueSize          = 64
	DefaultTimeout            = time.Minute
	DefaultMaxCounterexamples = 10
)

func newOptions(opts []Option) *options {
	o := &options{
		timeout:            DefaultTimeout,
		coreBound:          solver.DefaultCoreBound,
		validate:           true,
		workers:            DefaultWorkers,
		queueSize:          DefaultQueueSize,
		maxCounterexamples: DefaultMaxCounterexamples,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	return o
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithTimeout sets the deadline of each check. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxClauses reports checks whose encoding would exceed n clauses
// as EncodingTooLarge. Zero disables the limit.
func WithMaxClauses(n int) Option {
	return func(o *options) {
		o.maxClauses = n
	}
}

func WithCoreBound(n int) Option {
	return func(o *options) {
		o.coreBound = n
	}
}

// WithValidation turns the independent re-check of every conclusive
// result on or off.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithMaxCounterexamples bounds the counterexamples kept per model in a
// Report.
func WithMaxCounterexamples(n int) Option {
	return func(o *options) {
		o.maxCounterexamples = n
	}
}

// WithMetrics makes VerifyAll record Prometheus metrics for every check.
func WithMetrics() Option {
	return func(o *options) {
		o.instrument = true
	}
}
