package verifier

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycheck/polycheck/pkg/consistency"
	"github.com/polycheck/polycheck/pkg/history"
)

func TestVerifyAll(t *testing.T) {
	histories := []*history.History{lostUpdate(), writeSkew(), serial()}
	models := []consistency.Model{consistency.Serializability, consistency.SnapshotIsolation}

	rep, err := VerifyAll(context.Background(), Checks(histories, models), WithWorkers(2), WithMaxCounterexamples(1))
	require.NoError(t, err)
	require.Len(t, rep.Results, 6)

	assert.Equal(t, []ModelReport{
		{Model: consistency.SnapshotIsolation, Satisfied: 2, Violated: 1},
		{Model: consistency.Serializability, Satisfied: 1, Violated: 2},
	}, withoutCounterexamples(rep.Models))
	for _, m := range rep.Models {
		assert.Len(t, m.Counterexamples, 1, m.Model.String())
	}

	for _, tt := range []struct {
		History string
		Model   consistency.Model
		Verdict Verdict
	}{
		{"lost-update", consistency.SnapshotIsolation, Violated},
		{"lost-update", consistency.Serializability, Violated},
		{"write-skew", consistency.SnapshotIsolation, Satisfied},
		{"write-skew", consistency.Serializability, Violated},
		{"serial", consistency.Serializability, Satisfied},
	} {
		v, ok := rep.Verdict(tt.History, tt.Model)
		require.True(t, ok)
		assert.Equal(t, tt.Verdict, v, "%s under %s", tt.History, tt.Model)
	}
}

func withoutCounterexamples(ms []ModelReport) []ModelReport {
	out := make([]ModelReport, len(ms))
	for i, m := range ms {
		m.Counterexamples = nil
		out[i] = m
	}
	return out
}

func TestVerifyAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := VerifyAll(ctx, Checks([]*history.History{serial()}, consistency.Models))
	assert.Error(t, err)
	require.NotNil(t, rep)
	for _, r := range rep.Results {
		assert.Equal(t, Cancelled, r.Reason)
	}
}

func TestAggregator(t *testing.T) {
	a := NewAggregator(1)
	a.Add(Result{HistoryID: "b", Model: consistency.Serializability, Verdict: Timeout})
	a.Add(Result{HistoryID: "a", Model: consistency.Serializability, Verdict: Violated, Counterexample: &consistency.Counterexample{History: "a"}})
	a.Add(Result{HistoryID: "c", Model: consistency.Serializability, Verdict: Violated, Counterexample: &consistency.Counterexample{History: "c"}})
	a.Add(Result{HistoryID: "a", Model: consistency.ReadCommitted, Verdict: Error})
	a.Add(Result{HistoryID: "a", Model: consistency.ReadCommitted, Verdict: Satisfied})

	rep := a.Report()
	require.Len(t, rep.Results, 4)
	assert.Equal(t, "a", rep.Results[0].HistoryID)
	assert.Equal(t, consistency.ReadCommitted, rep.Results[0].Model)

	require.Len(t, rep.Models, 2)
	assert.Equal(t, ModelReport{Model: consistency.ReadCommitted, Satisfied: 1}, rep.Models[0])
	ser := rep.Models[1]
	assert.Equal(t, 3, ser.Total())
	assert.Equal(t, 2, ser.Violated)
	assert.Equal(t, 1, ser.Timeout)
	require.Len(t, ser.Counterexamples, 1)
	assert.Equal(t, "a", ser.Counterexamples[0].History)
}

func TestInstrumentedVerifier(t *testing.T) {
	var succeeded, failed []string
	inner := verifierFunc(func(_ context.Context, c Check) Result {
		if c.Model == consistency.Serializability {
			return Result{Model: c.Model, Verdict: Timeout, Reason: SolverTimeout}
		}
		return Result{Model: c.Model, Verdict: Satisfied}
	})
	v := NewInstrumentedVerifier(inner,
		func(m string, _ time.Duration) { succeeded = append(succeeded, m) },
		func(m string, _ time.Duration) { failed = append(failed, m) },
	)

	v.Verify(context.Background(), Check{History: serial(), Model: consistency.Serializability})
	v.Verify(context.Background(), Check{History: serial(), Model: consistency.CausalConsistency})
	assert.Equal(t, []string{"causal"}, succeeded)
	assert.Equal(t, []string{"serializable"}, failed)
}

func TestSnapshotRoundTrip(t *testing.T) {
	histories := []*history.History{lostUpdate(), writeSkew()}
	models := []consistency.Model{consistency.SnapshotIsolation}
	rep, err := VerifyAll(context.Background(), Checks(histories, models))
	require.NoError(t, err)

	s := NewSnapshot(histories, models, rep)
	var buf bytes.Buffer
	require.NoError(t, SaveSnapshot(&buf, s))

	loaded, err := LoadSnapshot(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(s, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot changed on round trip (-want +got):\n%s", diff)
	}
	assert.Len(t, loaded.Checks(), 2)

	replayed, err := VerifyAll(context.Background(), loaded.Checks())
	require.NoError(t, err)
	assert.Empty(t, Compare(loaded.Results, replayed))
}

func TestLoadSnapshotVersion(t *testing.T) {
	_, err := LoadSnapshot(strings.NewReader("version: 2.0.0\nmodels: [serializable]\n"))
	assert.Error(t, err)

	_, err = LoadSnapshot(strings.NewReader("version: banana\n"))
	assert.Error(t, err)

	s, err := LoadSnapshot(strings.NewReader("version: 1.3.0\nmodels: [serializable, si]\n"))
	require.NoError(t, err)
	assert.Equal(t, []consistency.Model{consistency.Serializability, consistency.SnapshotIsolation}, s.Models)
}

func TestCompare(t *testing.T) {
	recorded := []Result{
		{HistoryID: "a", Model: consistency.Serializability, Verdict: Violated},
		{HistoryID: "b", Model: consistency.Serializability, Verdict: Satisfied},
		{HistoryID: "c", Model: consistency.Serializability, Verdict: Satisfied},
	}
	rep := &Report{Results: []Result{
		{HistoryID: "a", Model: consistency.Serializability, Verdict: Violated},
		{HistoryID: "b", Model: consistency.Serializability, Verdict: Timeout},
	}}
	assert.Equal(t, []Drift{
		{HistoryID: "b", Model: consistency.Serializability, Before: Satisfied, After: Timeout},
		{HistoryID: "c", Model: consistency.Serializability, Before: Satisfied},
	}, Compare(recorded, rep))
}
