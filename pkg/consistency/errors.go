package consistency

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/polycheck/polycheck/pkg/graph"
)

// TriviallyViolatedError is returned by Encode when a history violates
// every model regardless of how its writes are ordered: its session-order
// and write-read edges form a cycle, or some read is anomalous on its
// own.
type TriviallyViolatedError struct {
	History   string
	Model     Model
	Cycle     []graph.Edge
	Anomalies []graph.Anomaly
}

func (e *TriviallyViolatedError) Error() string {
	if len(e.Anomalies) > 0 {
		return fmt.Sprintf("history %s violates %s: %d anomalous reads, first %s", e.History, e.Model, len(e.Anomalies), e.Anomalies[0])
	}
	return fmt.Sprintf("history %s violates %s: fixed dependencies form a cycle of %d edges", e.History, e.Model, len(e.Cycle))
}

// Counterexample returns the violation in the form reported for
// solver-refuted histories.
func (e *TriviallyViolatedError) Counterexample() *Counterexample {
	return &Counterexample{
		History:   e.History,
		Model:     e.Model,
		Cycle:     e.Cycle,
		Anomalies: e.Anomalies,
	}
}

// EncodingTooLargeError is returned by Encode when the estimated number
// of clauses exceeds the configured limit. The check is inconclusive.
type EncodingTooLargeError struct {
	History string
	Model   Model
	Clauses int
	Limit   int
}

func (e *EncodingTooLargeError) Error() string {
	return fmt.Sprintf("encoding of history %s under %s needs about %d clauses, limit is %d", e.History, e.Model, e.Clauses, e.Limit)
}

// IsTriviallyViolated returns the TriviallyViolatedError behind err, if
// any.
func IsTriviallyViolated(err error) (*TriviallyViolatedError, bool) {
	e, ok := errors.Cause(err).(*TriviallyViolatedError)
	return e, ok
}

// IsEncodingTooLarge reports whether err was caused by an encoding over
// the clause limit.
func IsEncodingTooLarge(err error) bool {
	_, ok := errors.Cause(err).(*EncodingTooLargeError)
	return ok
}
