package consistency

import (
	"fmt"

	"github.com/polycheck/polycheck/pkg/graph"
	"github.com/polycheck/polycheck/pkg/history"
)

// Instance identifies the axiom instance behind an assumed clause.
type Instance struct {
	Axiom Axiom
	// Edge is the ordered pair the instance enforces for the fixed and
	// initial state axioms. Its Kind is WriteWrite when it orders
	// versions of Edge.Key.
	Edge graph.Edge
	// Read, Overwriter, Via and ViaKey describe a visibility instance:
	// Overwriter is visible to Read.Reader, so its version of Read.Key
	// must precede the one observed. Via is the intermediate
	// transaction of prefix and conflict instances, and ViaKey the key
	// the conflict is on.
	Read       graph.Read
	Overwriter history.TxnID
	Via        history.TxnID
	ViaKey     history.Key
}

func (i Instance) String() string {
	r := i.Read
	switch i.Axiom {
	case AxiomFixed:
		return fmt.Sprintf("%s: %s", i.Axiom, i.Edge)
	case AxiomInitial:
		if i.Edge.Key != "" {
			return fmt.Sprintf("%s: %s installs the first version of %s before %s", i.Axiom, i.Edge.From, i.Edge.Key, i.Edge.To)
		}
		return fmt.Sprintf("%s: %s precedes %s", i.Axiom, i.Edge.From, i.Edge.To)
	case AxiomReadCommitted:
		return fmt.Sprintf("%s: %s read from %s before reading %s from %s", i.Axiom, r.Reader, i.Overwriter, r.Key, r.Writer)
	case AxiomReadAtomic:
		return fmt.Sprintf("%s: %s precedes %s in session order or write-read, and %s reads %s from %s", i.Axiom, i.Overwriter, r.Reader, r.Reader, r.Key, r.Writer)
	case AxiomCausal:
		return fmt.Sprintf("%s: %s happens before %s, which reads %s from %s", i.Axiom, i.Overwriter, r.Reader, r.Key, r.Writer)
	case AxiomPrefix:
		return fmt.Sprintf("%s: if %s commits before %s, which precedes %s, then %s overwrites %s on %s", i.Axiom, i.Overwriter, i.Via, r.Reader, r.Writer, i.Overwriter, r.Key)
	case AxiomConflict:
		return fmt.Sprintf("%s: if %s commits before %s, whose write of %s precedes %s, then %s overwrites %s on %s", i.Axiom, i.Overwriter, i.Via, i.ViaKey, r.Reader, r.Writer, i.Overwriter, r.Key)
	case AxiomSerializable:
		return fmt.Sprintf("%s: if %s overwrites %s on %s, %s commits before %s", i.Axiom, i.Overwriter, r.Writer, r.Key, r.Reader, i.Overwriter)
	}
	return string(i.Axiom)
}

// orders adds the structural clauses: commit order and every version
// order are strict total orders, and version orders are contained in
// the commit order. Transitivity is stated as the absence of 3-cycles,
// which is equivalent for total relations.
func (e *Encoding) orders() {
	nodes := e.graph.Nodes()
	e.tournament(nodes, e.commitOrder)
	for _, ws := range e.graph.WriteSets() {
		k := ws.Key
		at := func(a, b history.TxnID) *orderVariable {
			return e.versionOrder(k, a, b)
		}
		e.tournament(ws.Writers, at)
		for _, a := range ws.Writers {
			for _, b := range ws.Writers {
				if a != b {
					e.hard(neg(at(a, b)), pos(e.commitOrder(a, b)))
				}
			}
		}
	}
}

func (e *Encoding) tournament(nodes []history.TxnID, at func(a, b history.TxnID) *orderVariable) {
	for i, a := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			b := nodes[j]
			e.hard(neg(at(a, b)), neg(at(b, a)))
			e.hard(pos(at(a, b)), pos(at(b, a)))
			for l := j + 1; l < len(nodes); l++ {
				c := nodes[l]
				e.hard(neg(at(a, b)), neg(at(b, c)), neg(at(c, a)))
				e.hard(neg(at(a, c)), neg(at(c, b)), neg(at(b, a)))
			}
		}
	}
}

// fixed assumes the session-order and write-read edges and puts the
// initial state first.
func (e *Encoding) fixed() {
	for _, edge := range e.graph.Fixed() {
		e.track(Instance{Axiom: AxiomFixed, Edge: edge}, pos(e.commitOrder(edge.From, edge.To)))
	}
	for _, t := range e.graph.Nodes() {
		if t == history.InitTxn {
			continue
		}
		edge := graph.Edge{From: history.InitTxn, To: t}
		e.track(Instance{Axiom: AxiomInitial, Edge: edge}, pos(e.commitOrder(history.InitTxn, t)))
	}
	for _, ws := range e.graph.WriteSets() {
		for _, w := range ws.Writers[1:] {
			edge := graph.Edge{From: history.InitTxn, To: w, Kind: graph.WriteWrite, Key: ws.Key}
			e.track(Instance{Axiom: AxiomInitial, Edge: edge}, pos(e.versionOrder(ws.Key, history.InitTxn, w)))
		}
	}
}

// visibility adds, for every external read, the clauses of the model's
// visibility axioms: any write visible to the reader must be ordered
// before the write it observed.
func (e *Encoding) visibility() {
	g := e.graph
	hb := g.HappensBefore()
	for _, r := range g.Reads() {
		t1, t3, k := r.Writer, r.Reader, r.Key
		for _, t2 := range g.Writers(k) {
			if t2 == history.InitTxn || t2 == t1 || t2 == t3 {
				continue
			}
			inst := Instance{Read: r, Overwriter: t2}
			overwritten := pos(e.versionOrder(k, t2, t1))

			if e.model.has(AxiomReadCommitted) && readEarlier(g, r, t2) {
				inst.Axiom = AxiomReadCommitted
				e.track(inst, overwritten)
			}
			if e.model.has(AxiomReadAtomic) && visibleInSession(g, t2, t3) {
				inst.Axiom = AxiomReadAtomic
				e.track(inst, overwritten)
			}
			if e.model.has(AxiomCausal) && hb.Reaches(t2, t3) {
				inst.Axiom = AxiomCausal
				e.track(inst, overwritten)
			}
			if e.model.has(AxiomPrefix) {
				for _, t4 := range g.Predecessors(t3) {
					inst := inst
					inst.Axiom = AxiomPrefix
					inst.Via = t4
					if t4 == t2 {
						e.track(inst, overwritten)
						continue
					}
					e.track(inst, neg(e.commitOrder(t2, t4)), overwritten)
				}
			}
			if e.model.has(AxiomConflict) {
				for _, y := range g.WriteKeys(t3) {
					for _, t4 := range g.Writers(y) {
						if t4 == history.InitTxn || t4 == t3 {
							continue
						}
						inst := inst
						inst.Axiom = AxiomConflict
						inst.Via = t4
						inst.ViaKey = y
						if t4 == t2 {
							e.track(inst, neg(e.versionOrder(y, t2, t3)), overwritten)
							continue
						}
						e.track(inst, neg(e.commitOrder(t2, t4)), neg(e.versionOrder(y, t4, t3)), overwritten)
					}
				}
			}
		}
	}

	if e.model.has(AxiomSerializable) {
		for _, i := range g.Implications() {
			r := graph.Read{Reader: i.Reader, Key: i.Key, Writer: i.Writer}
			inst := Instance{Axiom: AxiomSerializable, Read: r, Overwriter: i.Overwriter}
			e.track(inst, neg(e.versionOrder(i.Key, i.Writer, i.Overwriter)), pos(e.commitOrder(i.Reader, i.Overwriter)))
		}
	}
}

// readEarlier reports whether the reader of r observed a write of t
// before performing r.
func readEarlier(g *graph.Graph, r graph.Read, t history.TxnID) bool {
	for _, other := range g.ReadsOf(r.Reader) {
		if other.Index >= r.Index {
			break
		}
		if other.Writer == t {
			return true
		}
	}
	return false
}

// visibleInSession reports whether a precedes b in session order or b
// reads from a.
func visibleInSession(g *graph.Graph, a, b history.TxnID) bool {
	if g.SessionOrder(a, b) {
		return true
	}
	for _, p := range g.Predecessors(b) {
		if p == a {
			return true
		}
	}
	return false
}
