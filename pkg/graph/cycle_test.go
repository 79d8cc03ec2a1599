package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycheck/polycheck/pkg/history"
)

func so(from, to history.TxnID) Edge {
	return Edge{From: from, To: to, Kind: SessionOrder}
}

func TestFindCycle(t *testing.T) {
	for _, tt := range []struct {
		Name  string
		Edges []Edge
		Want  []Edge
	}{
		{
			Name:  "acyclic",
			Edges: []Edge{so("a", "b"), so("b", "c"), so("a", "c")},
		},
		{
			Name:  "self loop",
			Edges: []Edge{so("a", "b"), so("b", "b")},
			Want:  []Edge{so("b", "b")},
		},
		{
			Name:  "shortest of two cycles",
			Edges: []Edge{so("a", "b"), so("b", "c"), so("c", "a"), so("c", "b")},
			Want:  []Edge{so("b", "c"), so("c", "b")},
		},
		{
			Name:  "triangle",
			Edges: []Edge{so("a", "b"), so("b", "c"), so("c", "a")},
			Want:  []Edge{so("a", "b"), so("b", "c"), so("c", "a")},
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			assert.Equal(t, tt.Want, FindCycle(tt.Edges))
		})
	}
}

func TestShortestCycleExpandsHops(t *testing.T) {
	path := Hop{
		{From: "a", To: "b", Kind: WriteRead, Key: "x"},
		{From: "b", To: "c", Kind: ReadWrite, Key: "y"},
	}
	back := Hop{{From: "c", To: "a", Kind: WriteWrite, Key: "x"}}

	cycle := ShortestCycle([]Hop{path, back})
	require.Len(t, cycle, 3)
	assert.Equal(t, path[0], cycle[0])
	assert.Equal(t, path[1], cycle[1])
	assert.Equal(t, back[0], cycle[2])
}

func TestShortestCycleCountsHopsNotEdges(t *testing.T) {
	long := Hop{so("a", "x"), so("x", "y"), so("y", "a")}
	short := []Hop{{so("a", "b")}, {so("b", "a")}}

	cycle := ShortestCycle(append([]Hop{long}, short...))
	assert.Equal(t, []Edge{so("a", "x"), so("x", "y"), so("y", "a")}, cycle)
}

func TestReachability(t *testing.T) {
	r := NewReachability(
		[]history.TxnID{"a", "b", "c", "d"},
		[]Edge{so("a", "b"), so("b", "c"), so("z", "a")},
	)
	assert.True(t, r.Reaches("a", "c"))
	assert.False(t, r.Reaches("c", "a"))
	assert.False(t, r.Reaches("a", "a"))
	assert.False(t, r.Reaches("a", "d"))
	assert.False(t, r.Reaches("z", "a"))
}

func TestLinearize(t *testing.T) {
	nodes := []history.TxnID{"a", "b", "c"}
	assert.Equal(t, []history.TxnID{"a", "b", "c"}, Linearize(nodes, nil))
	assert.Equal(t, []history.TxnID{"c", "a", "b"}, Linearize(nodes, []Edge{so("c", "a"), so("c", "b")}))
	assert.Equal(t, []history.TxnID{"b", "c", "a"}, Linearize(nodes, []Edge{so("c", "a"), so("b", "c")}))
	assert.Nil(t, Linearize(nodes, []Edge{so("a", "b"), so("b", "a")}))
}
