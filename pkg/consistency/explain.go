package consistency

import (
	"golang.org/x/exp/slices"

	"github.com/polycheck/polycheck/pkg/graph"
	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/solver"
)

// Counterexample explains why a history violates a model. Cycle is a
// dependency cycle the model forbids; its WW and RW edges refer to
// Versions, the version orders it was derived under. A cycle made only
// of WW edges without Versions means the model's visibility rules alone
// order some key cyclically. Anomalies is set instead of Cycle for
// anomalous reads.
type Counterexample struct {
	History   string                          `json:"history,omitempty"`
	Model     Model                           `json:"model"`
	Cycle     []graph.Edge                    `json:"cycle,omitempty"`
	Versions  map[history.Key][]history.TxnID `json:"versions,omitempty"`
	Core      []string                        `json:"core,omitempty"`
	Anomalies []graph.Anomaly                 `json:"anomalies,omitempty"`
}

// Explain derives a counterexample from an unsatisfiable core of the
// encoding. Version orders are first chosen to satisfy the version-order
// units of the core; every commit-order edge the rest of the core forces
// under those orders is then collected, and the shortest cycle among
// them is reported.
func (e *Encoding) Explain(core solver.NotSatisfiable) *Counterexample {
	cx := &Counterexample{
		History: e.graph.Index().History().Name(),
		Model:   e.model,
	}

	var units, rest []axiomConstraint
	var keys []history.Key
	for _, a := range core {
		c, ok := a.Constraint.(axiomConstraint)
		if !ok {
			continue
		}
		cx.Core = append(cx.Core, c.instance.String())
		for _, l := range c.lits {
			if l.v.versioned && !slices.Contains(keys, l.v.key) {
				keys = append(keys, l.v.key)
			}
		}
		if len(c.lits) == 1 && c.lits[0].v.versioned && !c.lits[0].neg {
			units = append(units, c)
			continue
		}
		rest = append(rest, c)
	}
	slices.Sort(keys)

	versions, cycle := e.chooseVersions(keys, units)
	if cycle != nil {
		cx.Cycle = cycle
		return cx
	}
	cx.Versions = versions

	truth := make(map[*orderVariable]bool)
	var hops []graph.Hop
	for _, k := range keys {
		order := versions[k]
		for i, a := range order {
			for _, b := range order[i+1:] {
				truth[e.versionOrder(k, a, b)] = true
				if a != history.InitTxn {
					hops = append(hops, graph.Hop{{From: a, To: b, Kind: graph.WriteWrite, Key: k}})
				}
			}
		}
	}

	for _, c := range rest {
		if hop := e.forced(c, truth); hop != nil {
			hops = append(hops, hop)
		}
	}
	cx.Cycle = graph.ShortestCycle(hops)
	return cx
}

// chooseVersions orders the writers of every key so that the given
// version-order units hold, InitTxn first. If the units of some key are
// cyclic, it returns that cycle instead.
func (e *Encoding) chooseVersions(keys []history.Key, units []axiomConstraint) (map[history.Key][]history.TxnID, []graph.Edge) {
	versions := make(map[history.Key][]history.TxnID, len(keys))
	for _, k := range keys {
		writers := e.graph.Writers(k)
		var edges []graph.Edge
		for _, w := range writers[1:] {
			edges = append(edges, graph.Edge{From: history.InitTxn, To: w, Kind: graph.WriteWrite, Key: k})
		}
		for _, u := range units {
			v := u.lits[0].v
			if v.key == k {
				edges = append(edges, graph.Edge{From: v.from, To: v.to, Kind: graph.WriteWrite, Key: k})
			}
		}
		order := graph.Linearize(writers, edges)
		if order == nil {
			return nil, graph.FindCycle(edges)
		}
		versions[k] = order
	}
	return versions, nil
}

// forced returns the commit-order constraint c imposes once its
// version-order literals are fixed by truth, as the dependency path that
// justifies it. It returns nil when c is already satisfied.
func (e *Encoding) forced(c axiomConstraint, truth map[*orderVariable]bool) graph.Hop {
	for _, l := range c.lits {
		if l.v.versioned && l.holds(truth) {
			return nil
		}
	}

	inst := c.instance
	r := inst.Read
	rw := graph.Edge{From: r.Reader, To: inst.Overwriter, Kind: graph.ReadWrite, Key: r.Key}
	switch inst.Axiom {
	case AxiomFixed:
		return graph.Hop{inst.Edge}
	case AxiomSerializable:
		return graph.Hop{rw}
	case AxiomPrefix:
		return graph.Hop{e.fixedEdge(inst.Via, r.Reader), rw}
	case AxiomConflict:
		ww := graph.Edge{From: inst.Via, To: r.Reader, Kind: graph.WriteWrite, Key: inst.ViaKey}
		return graph.Hop{ww, rw}
	}
	// Initial state edges leave InitTxn, which nothing can precede.
	return nil
}

// fixedEdge returns the session-order edge from a to b if there is one,
// or else a write-read edge.
func (e *Encoding) fixedEdge(a, b history.TxnID) graph.Edge {
	var found graph.Edge
	for _, edge := range e.graph.Fixed() {
		if edge.From != a || edge.To != b {
			continue
		}
		if edge.Kind == graph.SessionOrder {
			return edge
		}
		if found.Kind == "" {
			found = edge
		}
	}
	return found
}
