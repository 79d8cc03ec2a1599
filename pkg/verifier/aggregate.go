package verifier

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/metrics"
)

type resultKey struct {
	history string
	model   consistency.Model
}

// Aggregator collects results keyed by history and model. A later
// result for the same key replaces the earlier one.
type Aggregator struct {
	mu                 sync.Mutex
	results            map[resultKey]Result
	maxCounterexamples int
}

func NewAggregator(maxCounterexamples int) *Aggregator {
	return &Aggregator{
		results:            make(map[resultKey]Result),
		maxCounterexamples: maxCounterexamples,
	}
}

func (a *Aggregator) Add(r Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[resultKey{history: r.HistoryID, model: r.Model}] = r
}

// Results returns every collected result, ordered by model and then by
// history.
func (a *Aggregator) Results() []Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Result, 0, len(a.results))
	for _, r := range a.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].HistoryID < out[j].HistoryID
	})
	return out
}

// ModelReport summarizes the results of one model.
type ModelReport struct {
	Model     consistency.Model `json:"model"`
	Satisfied int               `json:"satisfied"`
	Violated  int               `json:"violated"`
	Timeout   int               `json:"timeout"`
	Error     int               `json:"error"`
	// Counterexamples holds the first violations, by history.
	Counterexamples []*consistency.Counterexample `json:"counterexamples,omitempty"`
}

func (m ModelReport) Total() int {
	return m.Satisfied + m.Violated + m.Timeout + m.Error
}

type Report struct {
	Models  []ModelReport `json:"models"`
	Results []Result      `json:"results"`
}

func (a *Aggregator) Report() *Report {
	rep := &Report{Results: a.Results()}
	for _, r := range rep.Results {
		if n := len(rep.Models); n == 0 || rep.Models[n-1].Model != r.Model {
			rep.Models = append(rep.Models, ModelReport{Model: r.Model})
		}
		m := &rep.Models[len(rep.Models)-1]
		switch r.Verdict {
		case Satisfied:
			m.Satisfied++
		case Violated:
			m.Violated++
			if r.Counterexample != nil && len(m.Counterexamples) < a.maxCounterexamples {
				m.Counterexamples = append(m.Counterexamples, r.Counterexample)
			}
		case Timeout:
			m.Timeout++
		default:
			m.Error++
		}
	}
	return rep
}

// Verdict returns the verdict recorded for a history under a model.
func (rep *Report) Verdict(historyID string, m consistency.Model) (Verdict, bool) {
	for _, r := range rep.Results {
		if r.HistoryID == historyID && r.Model == m {
			return r.Verdict, true
		}
	}
	return "", false
}

// VerifyAll runs every check through a Pipeline on an Orchestrator and
// reports the results. The report is returned even when ctx ends the
// run early: queued checks then count as cancelled errors and checks
// that were never queued are missing from it.
func VerifyAll(ctx context.Context, checks []Check, opts ...Option) (*Report, error) {
	o := newOptions(opts)
	var v Verifier = NewPipeline(opts...)
	if o.instrument {
		metrics.Register()
		v = NewInstrumentedVerifier(v, metrics.RegisterCheckSuccess, metrics.RegisterCheckFailure)
	}
	orch := NewOrchestrator(v, opts...)
	agg := NewAggregator(o.maxCounterexamples)

	var eg errgroup.Group
	eg.Go(func() error {
		return orch.Run(ctx)
	})
	eg.Go(func() error {
		defer orch.Close()
		for _, c := range checks {
			if err := orch.Submit(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	for r := range orch.Results() {
		agg.Add(r)
	}
	err := eg.Wait()
	return agg.Report(), err
}

// Checks pairs every history with every model.
func Checks(histories []*history.History, models []consistency.Model) []Check {
	checks := make([]Check, 0, len(histories)*len(models))
	for _, h := range histories {
		for _, m := range models {
			checks = append(checks, Check{History: h, Model: m})
		}
	}
	return checks
}
