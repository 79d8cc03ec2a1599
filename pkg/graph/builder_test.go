package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycheck/polycheck/pkg/history"
)

func TestBuildLostUpdate(t *testing.T) {
	h := history.NewBuilder("lost-update").
		Initial("x", 0).
		Commit("s1", "t1", history.Read("x", 0), history.Write("x", 1)).
		Commit("s2", "t2", history.Read("x", 0), history.Write("x", 2)).
		History()

	g, err := FromHistory(h)
	require.NoError(t, err)

	assert.Equal(t, []history.TxnID{history.InitTxn, "t1", "t2"}, g.Nodes())
	assert.Equal(t, []Edge{
		{From: history.InitTxn, To: "t1", Kind: WriteRead, Key: "x"},
		{From: history.InitTxn, To: "t2", Kind: WriteRead, Key: "x"},
	}, g.Fixed())
	assert.Equal(t, []WriteSet{{Key: "x", Writers: []history.TxnID{history.InitTxn, "t1", "t2"}}}, g.WriteSets())
	assert.Equal(t, []Implication{
		{Reader: "t1", Key: "x", Writer: history.InitTxn, Overwriter: "t2"},
		{Reader: "t2", Key: "x", Writer: history.InitTxn, Overwriter: "t1"},
	}, g.Implications())
	assert.Empty(t, g.Anomalies())
	assert.Empty(t, g.Predecessors("t1"))
}

func TestBuildSessionOrderSkipsAborted(t *testing.T) {
	h := history.NewBuilder("aborted").
		Commit("s1", "t1", history.Write("x", 1)).
		Abort("s1", "t2", history.Write("x", 2)).
		Commit("s1", "t3", history.Read("x", 1)).
		History()

	g, err := FromHistory(h)
	require.NoError(t, err)

	assert.Equal(t, []history.TxnID{history.InitTxn, "t1", "t3"}, g.Nodes())
	assert.Equal(t, []Edge{
		{From: "t1", To: "t3", Kind: SessionOrder},
		{From: "t1", To: "t3", Kind: WriteRead, Key: "x"},
	}, g.Fixed())
	assert.Equal(t, []history.TxnID{"t1"}, g.Predecessors("t3"))
	assert.Equal(t, -1, g.Position("t2"))
	assert.True(t, g.HappensBefore().Reaches("t1", "t3"))
	assert.False(t, g.HappensBefore().Reaches("t3", "t1"))
}

func TestSessionOrderIsTransitive(t *testing.T) {
	h := history.NewBuilder("sessions").
		Commit("s1", "t1", history.Write("x", 1)).
		Commit("s1", "t2", history.Write("y", 1)).
		Abort("s1", "t3", history.Write("x", 2)).
		Commit("s1", "t4", history.Read("y", 1)).
		Commit("s2", "t5", history.Write("x", 3)).
		History()

	g, err := FromHistory(h)
	require.NoError(t, err)

	assert.Equal(t, []history.TxnID{"t2"}, g.Predecessors("t4"))
	assert.True(t, g.SessionOrder("t1", "t2"))
	assert.True(t, g.SessionOrder("t1", "t4"))
	assert.False(t, g.SessionOrder("t4", "t1"))
	assert.False(t, g.SessionOrder("t1", "t1"))
	assert.False(t, g.SessionOrder("t1", "t3"), "aborted transactions are not ordered")
	assert.False(t, g.SessionOrder("t1", "t5"))
	assert.False(t, g.SessionOrder(history.InitTxn, "t1"))
}

func TestBuildAnomalies(t *testing.T) {
	for _, tt := range []struct {
		Name    string
		History *history.History
		Want    AnomalyKind
	}{
		{
			Name: "read of an aborted write",
			History: history.NewBuilder("h").
				Abort("s1", "t1", history.Write("x", 1)).
				Commit("s2", "t2", history.Read("x", 1)).
				History(),
			Want: AbortedRead,
		},
		{
			Name: "read of an overwritten intermediate value",
			History: history.NewBuilder("h").
				Commit("s1", "t1", history.Write("x", 1), history.Write("x", 2)).
				Commit("s2", "t2", history.Read("x", 1)).
				History(),
			Want: IntermediateRead,
		},
		{
			Name: "read missing the reader's own write",
			History: history.NewBuilder("h").
				Initial("x", 0).
				Commit("s1", "t1", history.Write("x", 1), history.Read("x", 0)).
				History(),
			Want: InternalInconsistency,
		},
		{
			Name: "read of the reader's later write",
			History: history.NewBuilder("h").
				Commit("s1", "t1", history.Read("x", 1), history.Write("x", 1)).
				History(),
			Want: FutureRead,
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			g, err := FromHistory(tt.History)
			require.NoError(t, err)
			require.Len(t, g.Anomalies(), 1)
			assert.Equal(t, tt.Want, g.Anomalies()[0].Kind)
		})
	}
}

func TestBuildInternalReadAddsNoEdge(t *testing.T) {
	h := history.NewBuilder("internal").
		Commit("s1", "t1", history.Write("x", 1), history.Read("x", 1)).
		History()

	g, err := FromHistory(h)
	require.NoError(t, err)
	assert.Empty(t, g.Fixed())
	assert.Empty(t, g.Reads())
	assert.Empty(t, g.Anomalies())
	assert.Equal(t, []history.Key{"x"}, g.WriteKeys("t1"))
}

func TestFromHistoryMalformed(t *testing.T) {
	h := history.NewBuilder("h").
		Commit("s1", "t1", history.Read("x", 3)).
		History()

	_, err := FromHistory(h)
	require.Error(t, err)
	assert.True(t, history.IsMalformed(err))
}
