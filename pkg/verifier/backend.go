package verifier

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/solver"
)

//go:generate mockgen -destination mock_backend.go -package verifier . Backend

// Backend decides an encoding. It returns a witness when the encoding is
// satisfiable and a counterexample when it is not.
type Backend interface {
	Solve(ctx context.Context, enc *consistency.Encoding) (*consistency.Witness, *consistency.Counterexample, error)
}

// SATBackend solves encodings with the gini-backed solver.
type SATBackend struct {
	logger  logrus.FieldLogger
	options []solver.Option
}

var _ Backend = &SATBackend{}

func NewSATBackend(logger logrus.FieldLogger, options ...solver.Option) *SATBackend {
	return &SATBackend{logger: logger, options: options}
}

func (b *SATBackend) Solve(ctx context.Context, enc *consistency.Encoding) (*consistency.Witness, *consistency.Counterexample, error) {
	opts := []solver.Option{solver.WithInput(enc.Variables())}
	if b.logger != nil {
		opts = append(opts, solver.WithTracer(solver.LogrusTracer{Logger: b.logger.WithField("model", enc.Model().String())}))
	}
	s, err := solver.New(append(opts, b.options...)...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building solver")
	}

	selected, err := s.Solve(ctx)
	if core, ok := err.(solver.NotSatisfiable); ok {
		return nil, enc.Explain(core), nil
	}
	if err != nil {
		return nil, nil, err
	}
	return enc.Decode(selected), nil, nil
}
