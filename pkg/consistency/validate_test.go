package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycheck/polycheck/pkg/graph"
	"github.com/polycheck/polycheck/pkg/history"
)

func TestValidateWitness(t *testing.T) {
	g, err := graph.FromHistory(lostUpdate())
	require.NoError(t, err)

	serial := &Witness{
		CommitOrder: []history.TxnID{history.InitTxn, "t1", "t2"},
		Versions:    map[history.Key][]history.TxnID{"x": {history.InitTxn, "t1", "t2"}},
	}
	assert.NoError(t, ValidateWitness(g, PrefixConsistency, serial))
	assert.Error(t, ValidateWitness(g, Serializability, serial), "t2 misses the write of t1")

	for _, tt := range []struct {
		Name    string
		Witness *Witness
	}{
		{
			Name: "initial state not first",
			Witness: &Witness{
				CommitOrder: []history.TxnID{"t1", history.InitTxn, "t2"},
				Versions:    serial.Versions,
			},
		},
		{
			Name: "missing transaction",
			Witness: &Witness{
				CommitOrder: []history.TxnID{history.InitTxn, "t1"},
				Versions:    serial.Versions,
			},
		},
		{
			Name: "version order against commit order",
			Witness: &Witness{
				CommitOrder: serial.CommitOrder,
				Versions:    map[history.Key][]history.TxnID{"x": {history.InitTxn, "t2", "t1"}},
			},
		},
		{
			Name: "missing version order",
			Witness: &Witness{
				CommitOrder: serial.CommitOrder,
			},
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			assert.Error(t, ValidateWitness(g, ReadCommitted, tt.Witness))
		})
	}
}

func TestValidateWitnessFixedEdges(t *testing.T) {
	g, err := graph.FromHistory(readYourWrites())
	require.NoError(t, err)

	w := &Witness{
		CommitOrder: []history.TxnID{history.InitTxn, "t2", "t1"},
		Versions:    map[history.Key][]history.TxnID{"x": {history.InitTxn, "t1"}},
	}
	assert.Error(t, ValidateWitness(g, ReadCommitted, w))
}

func TestValidateCounterexample(t *testing.T) {
	g, err := graph.FromHistory(lostUpdate())
	require.NoError(t, err)

	versions := map[history.Key][]history.TxnID{"x": {history.InitTxn, "t1", "t2"}}
	ww := graph.Edge{From: "t1", To: "t2", Kind: graph.WriteWrite, Key: "x"}
	rw := graph.Edge{From: "t2", To: "t1", Kind: graph.ReadWrite, Key: "x"}

	valid := &Counterexample{Model: Serializability, Cycle: []graph.Edge{ww, rw}, Versions: versions}
	assert.NoError(t, ValidateCounterexample(g, valid))

	for _, tt := range []struct {
		Name string
		Cx   *Counterexample
	}{
		{
			Name: "empty",
			Cx:   &Counterexample{Model: Serializability},
		},
		{
			Name: "open cycle",
			Cx:   &Counterexample{Model: Serializability, Cycle: []graph.Edge{ww}, Versions: versions},
		},
		{
			Name: "version order contradicts the edge",
			Cx: &Counterexample{
				Model:    Serializability,
				Cycle:    []graph.Edge{ww, rw},
				Versions: map[history.Key][]history.TxnID{"x": {history.InitTxn, "t2", "t1"}},
			},
		},
		{
			Name: "unknown session order",
			Cx: &Counterexample{
				Model: Serializability,
				Cycle: []graph.Edge{
					{From: "t1", To: "t2", Kind: graph.SessionOrder},
					rw,
				},
				Versions: versions,
			},
		},
		{
			Name: "anti-dependency under a weak model",
			Cx:   &Counterexample{Model: CausalConsistency, Cycle: []graph.Edge{ww, rw}, Versions: versions},
		},
		{
			Name: "anti-dependency after a version edge under prefix consistency",
			Cx:   &Counterexample{Model: PrefixConsistency, Cycle: []graph.Edge{ww, rw}, Versions: versions},
		},
		{
			Name: "unforced version edge without version orders",
			Cx: &Counterexample{
				Model: ReadCommitted,
				Cycle: []graph.Edge{ww, {From: "t2", To: "t1", Kind: graph.WriteWrite, Key: "x"}},
			},
		},
		{
			Name: "anomaly not in the history",
			Cx: &Counterexample{
				Model:     ReadCommitted,
				Anomalies: []graph.Anomaly{{Kind: graph.AbortedRead, Reader: "t1", Key: "x", Writer: "t9"}},
			},
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			assert.Error(t, ValidateCounterexample(g, tt.Cx))
		})
	}
}

func TestValidateCounterexampleSnapshotShape(t *testing.T) {
	g, err := graph.FromHistory(writeSkew())
	require.NoError(t, err)

	cx := &Counterexample{
		Model: SnapshotIsolation,
		Cycle: []graph.Edge{
			{From: "t1", To: "t2", Kind: graph.ReadWrite, Key: "y"},
			{From: "t2", To: "t1", Kind: graph.ReadWrite, Key: "x"},
		},
		Versions: map[history.Key][]history.TxnID{
			"x": {history.InitTxn, "t1"},
			"y": {history.InitTxn, "t2"},
		},
	}
	assert.Error(t, ValidateCounterexample(g, cx))

	cx.Model = Serializability
	assert.NoError(t, ValidateCounterexample(g, cx))
}
