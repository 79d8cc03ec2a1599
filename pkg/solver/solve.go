package solver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/pkg/errors"
)

// ErrIncomplete is returned when the context passed to Solve is done
// before the solver reached a result.
var ErrIncomplete = errors.New("cancelled before a solution could be found")

// ErrEncodingTooLarge is the cause of the error returned when a problem
// has more clauses than the limit set with WithMaxClauses.
var ErrEncodingTooLarge = errors.New("encoding too large")

// NotSatisfiable is an error composed of a set of applied constraints
// that is sufficient to make a solution impossible. It is minimized on a
// best-effort basis.
type NotSatisfiable []AppliedConstraint

func (e NotSatisfiable) Error() string {
	const msg = "constraints not satisfiable"
	if len(e) == 0 {
		return msg
	}
	s := make([]string, len(e))
	for i, a := range e {
		s[i] = a.String()
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(s, ", "))
}

type Solver interface {
	Solve(context.Context) ([]Variable, error)
	Stats() Stats
}

type solver struct {
	litMap       *litMapping
	tracer       Tracer
	maxClauses   int
	coreBound    int
	pollInterval time.Duration
}

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Solve takes a slice containing all Variables and returns a slice
// containing only those Variables that were assigned true. If no
// solution is possible, or if the provided Context times out or is
// cancelled, an error is returned.
func (s *solver) Solve(ctx context.Context) (result []Variable, err error) {
	defer func() {
		// This likely indicates a bug, so discard whatever
		// return values were produced.
		if derr := s.litMap.Error(); derr != nil {
			result = nil
			err = derr
		}
	}()

	if n := s.litMap.Stats().Clauses(); s.maxClauses > 0 && n > s.maxClauses {
		return nil, errors.Wrapf(ErrEncodingTooLarge, "%d clauses exceed the limit of %d", n, s.maxClauses)
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrIncomplete
	}

	g := gini.New()
	s.litMap.AddConstraints(g)
	s.litMap.AssumeConstraints(g)

	switch solveWithin(ctx, g, s.pollInterval) {
	case satisfiable:
		return s.litMap.Variables(g), nil
	case unsatisfiable:
		c := core{
			g:      g,
			litMap: s.litMap,
			tracer: s.tracer,
			bound:  s.coreBound,
			poll:   s.pollInterval,
		}
		return nil, NotSatisfiable(c.shrink(ctx, s.litMap.Why(g)))
	}
	return nil, ErrIncomplete
}

// solveWithin solves g under its pending assumptions, stopping the
// search when ctx is done. It returns 0 if the search was stopped before
// a result.
func solveWithin(ctx context.Context, g inter.S, poll time.Duration) int {
	if ctx.Done() == nil {
		return g.Solve()
	}
	search := g.GoSolve()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if result, done := search.Test(); done {
			return result
		}
		select {
		case <-ctx.Done():
			return search.Stop()
		case <-ticker.C:
		}
	}
}

func (s *solver) Stats() Stats {
	return s.litMap.Stats()
}

func New(options ...Option) (Solver, error) {
	s := solver{coreBound: DefaultCoreBound}
	for _, option := range append(options, defaults...) {
		if err := option(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

type Option func(s *solver) error

func WithInput(input []Variable) Option {
	return func(s *solver) error {
		var err error
		s.litMap, err = newLitMapping(input)
		return err
	}
}

func WithTracer(t Tracer) Option {
	return func(s *solver) error {
		s.tracer = t
		return nil
	}
}

// WithMaxClauses rejects problems with more than n clauses before any
// solving starts. Zero means no limit.
func WithMaxClauses(n int) Option {
	return func(s *solver) error {
		if n < 0 {
			return errors.Errorf("invalid clause limit %d", n)
		}
		s.maxClauses = n
		return nil
	}
}

// WithCoreBound limits the number of extra solves spent minimizing an
// unsatisfiable core. Zero reports the core as found.
func WithCoreBound(n int) Option {
	return func(s *solver) error {
		if n < 0 {
			return errors.Errorf("invalid core bound %d", n)
		}
		s.coreBound = n
		return nil
	}
}

// WithPollInterval sets how often a running search checks whether its
// context is done.
func WithPollInterval(d time.Duration) Option {
	return func(s *solver) error {
		if d <= 0 {
			return errors.Errorf("invalid poll interval %s", d)
		}
		s.pollInterval = d
		return nil
	}
}

const (
	DefaultCoreBound    = 64
	DefaultPollInterval = 10 * time.Millisecond
)

var defaults = []Option{
	func(s *solver) error {
		if s.litMap == nil {
			var err error
			s.litMap, err = newLitMapping(nil)
			return err
		}
		return nil
	},
	func(s *solver) error {
		if s.tracer == nil {
			s.tracer = DefaultTracer{}
		}
		return nil
	},
	func(s *solver) error {
		if s.pollInterval == 0 {
			s.pollInterval = DefaultPollInterval
		}
		return nil
	},
}
