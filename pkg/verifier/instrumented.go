package verifier

import (
	"context"
	"time"

	"github.com/polycheck/polycheck/pkg/metrics"
)

type InstrumentedVerifier struct {
	verifier              Verifier
	successMetricsEmitter func(string, time.Duration)
	failureMetricsEmitter func(string, time.Duration)
}

var _ Verifier = &InstrumentedVerifier{}

func NewInstrumentedVerifier(verifier Verifier, successMetricsEmitter, failureMetricsEmitter func(string, time.Duration)) *InstrumentedVerifier {
	return &InstrumentedVerifier{
		verifier:              verifier,
		successMetricsEmitter: successMetricsEmitter,
		failureMetricsEmitter: failureMetricsEmitter,
	}
}

// Verify reports conclusive checks as successes and everything else as
// failures.
func (iv *InstrumentedVerifier) Verify(ctx context.Context, c Check) Result {
	start := time.Now()
	r := iv.verifier.Verify(ctx, c)
	if r.Conclusive() {
		iv.successMetricsEmitter(c.Model.String(), time.Since(start))
	} else {
		iv.failureMetricsEmitter(c.Model.String(), time.Since(start))
	}
	metrics.EmitCheck(c.Model.String(), string(r.Verdict), string(r.Reason))
	if n := r.Stats.Clauses(); n > 0 {
		metrics.ObserveEncodingClauses(n)
	}
	return r
}
