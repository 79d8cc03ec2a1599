package consistency

import (
	"github.com/pkg/errors"

	"github.com/polycheck/polycheck/pkg/graph"
	"github.com/polycheck/polycheck/pkg/history"
)

// ValidateWitness checks w against the definition of m directly,
// without the encoding: the commit order is a total order extending the
// session-order and write-read edges, every version order starts with
// InitTxn and agrees with the commit order, and every read observes the
// latest version among the writes visible to it under m.
func ValidateWitness(g *graph.Graph, m Model, w *Witness) error {
	if len(g.Anomalies()) > 0 {
		return errors.Errorf("history has %d anomalous reads", len(g.Anomalies()))
	}
	co, err := positions(g.Nodes(), w.CommitOrder)
	if err != nil {
		return errors.Wrap(err, "commit order")
	}
	for _, e := range g.Fixed() {
		if co[e.From] >= co[e.To] {
			return errors.Errorf("commit order contradicts %s", e)
		}
	}

	versions := make(map[history.Key]map[history.TxnID]int)
	for _, ws := range g.WriteSets() {
		vo, err := positions(ws.Writers, w.Versions[ws.Key])
		if err != nil {
			return errors.Wrapf(err, "version order of %s", ws.Key)
		}
		order := w.Versions[ws.Key]
		for i := 1; i < len(order); i++ {
			if co[order[i-1]] >= co[order[i]] {
				return errors.Errorf("version order of %s puts %s before %s against the commit order", ws.Key, order[i-1], order[i])
			}
		}
		versions[ws.Key] = vo
	}

	v := visibilityCheck{g: g, model: m, co: co, versions: versions, hb: g.HappensBefore()}
	for _, r := range g.Reads() {
		for _, t2 := range g.Writers(r.Key) {
			if t2 == history.InitTxn || t2 == r.Writer || t2 == r.Reader {
				continue
			}
			if v.visible(t2, r) && versions[r.Key][t2] > versions[r.Key][r.Writer] {
				return errors.Errorf("%s reads %s from %s under %s, but the later version of %s is visible to it", r.Reader, r.Key, r.Writer, m, t2)
			}
		}
	}
	return nil
}

// positions checks that order is a permutation of nodes starting with
// InitTxn and returns the position of each node.
func positions(nodes, order []history.TxnID) (map[history.TxnID]int, error) {
	if len(order) != len(nodes) {
		return nil, errors.Errorf("has %d entries, want %d", len(order), len(nodes))
	}
	if len(order) > 0 && order[0] != history.InitTxn {
		return nil, errors.Errorf("starts with %s instead of the initial state", order[0])
	}
	at := make(map[history.TxnID]int, len(order))
	for i, t := range order {
		if _, ok := at[t]; ok {
			return nil, errors.Errorf("lists %s twice", t)
		}
		at[t] = i
	}
	for _, n := range nodes {
		if _, ok := at[n]; !ok {
			return nil, errors.Errorf("misses %s", n)
		}
	}
	return at, nil
}

type visibilityCheck struct {
	g        *graph.Graph
	model    Model
	co       map[history.TxnID]int
	versions map[history.Key]map[history.TxnID]int
	hb       *graph.Reachability
}

// visible reports whether the write of t2 is visible to the reader of r
// under the model, given a witness.
func (v visibilityCheck) visible(t2 history.TxnID, r graph.Read) bool {
	t3 := r.Reader
	before := func(a, b history.TxnID) bool {
		return a == b || v.co[a] < v.co[b]
	}
	prefix := func() bool {
		for _, t4 := range v.g.Predecessors(t3) {
			if before(t2, t4) {
				return true
			}
		}
		return false
	}

	switch v.model {
	case ReadCommitted:
		return readEarlier(v.g, r, t2)
	case ReadAtomic:
		return readEarlier(v.g, r, t2) || visibleInSession(v.g, t2, t3)
	case CausalConsistency:
		return v.hb.Reaches(t2, t3)
	case PrefixConsistency:
		return prefix()
	case SnapshotIsolation:
		if prefix() {
			return true
		}
		for _, y := range v.g.WriteKeys(t3) {
			for _, t4 := range v.g.Writers(y) {
				if t4 == history.InitTxn || t4 == t3 {
					continue
				}
				if before(t2, t4) && v.versions[y][t4] < v.versions[y][t3] {
					return true
				}
			}
		}
		return false
	case Serializability:
		return v.co[t2] < v.co[t3]
	}
	return false
}

// ValidateCounterexample checks that cx describes a violation of its
// model in g: its cycle is closed, every edge is justified by the
// history or by the counterexample's version orders, and the model
// forbids a cycle of that shape. Anomalies are checked against the
// graph instead.
func ValidateCounterexample(g *graph.Graph, cx *Counterexample) error {
	if len(cx.Anomalies) > 0 {
		for _, a := range cx.Anomalies {
			if !containsAnomaly(g.Anomalies(), a) {
				return errors.Errorf("history has no anomaly %s", a)
			}
		}
		return nil
	}
	cycle := cx.Cycle
	if len(cycle) == 0 {
		return errors.New("counterexample has neither a cycle nor anomalies")
	}
	for i, e := range cycle {
		next := cycle[(i+1)%len(cycle)]
		if e.To != next.From {
			return errors.Errorf("cycle is broken between %s and %s", e, next)
		}
		if err := justify(g, cx, e); err != nil {
			return errors.Wrapf(err, "edge %s", e)
		}
	}

	for i, e := range cycle {
		if e.Kind != graph.ReadWrite {
			continue
		}
		prev := cycle[(i+len(cycle)-1)%len(cycle)]
		switch {
		case cx.Model.AtLeast(Serializability):
		case cx.Model == SnapshotIsolation:
			if prev.Kind == graph.ReadWrite {
				return errors.Errorf("%s allows consecutive anti-dependencies %s and %s", cx.Model, prev, e)
			}
		case cx.Model == PrefixConsistency:
			if prev.Kind != graph.SessionOrder && prev.Kind != graph.WriteRead {
				return errors.Errorf("%s allows anti-dependency %s after %s", cx.Model, e, prev)
			}
		default:
			return errors.Errorf("%s allows cycles through anti-dependency %s", cx.Model, e)
		}
	}
	return nil
}

func justify(g *graph.Graph, cx *Counterexample, e graph.Edge) error {
	switch e.Kind {
	case graph.SessionOrder, graph.WriteRead:
		for _, f := range g.Fixed() {
			if f == e {
				return nil
			}
		}
		return errors.New("not in the history")
	case graph.WriteWrite:
		if !writes(g, e.From, e.Key) || !writes(g, e.To, e.Key) || e.From == e.To {
			return errors.New("does not connect two writers of the key")
		}
		if cx.Versions != nil {
			if !precedes(cx.Versions[e.Key], e.From, e.To) {
				return errors.New("contradicts the version order")
			}
			return nil
		}
		if forcedVersion(g, cx.Model, e) {
			return nil
		}
		return errors.New("version order is not forced by the history")
	case graph.ReadWrite:
		if cx.Versions == nil {
			return errors.New("anti-dependency without version orders")
		}
		if e.From == e.To || !writes(g, e.To, e.Key) {
			return errors.New("target does not overwrite the key")
		}
		for _, r := range g.ReadsOf(e.From) {
			if r.Key == e.Key && precedes(cx.Versions[e.Key], r.Writer, e.To) {
				return nil
			}
		}
		return errors.New("no read is overwritten by the target")
	}
	return errors.Errorf("unknown edge kind %q", e.Kind)
}

// forcedVersion reports whether every version order admitted by m must
// put e.From before e.To: the initial state precedes every write, and a
// write visible to a reader precedes the version it observes.
func forcedVersion(g *graph.Graph, m Model, e graph.Edge) bool {
	if e.From == history.InitTxn {
		return true
	}
	hb := g.HappensBefore()
	for _, r := range g.Reads() {
		if r.Key != e.Key || r.Writer != e.To || r.Reader == e.From {
			continue
		}
		switch {
		case m == ReadCommitted:
			if readEarlier(g, r, e.From) {
				return true
			}
		case m == ReadAtomic:
			if readEarlier(g, r, e.From) || visibleInSession(g, e.From, r.Reader) {
				return true
			}
		default:
			if hb.Reaches(e.From, r.Reader) {
				return true
			}
		}
	}
	return false
}

func writes(g *graph.Graph, t history.TxnID, k history.Key) bool {
	for _, w := range g.Writers(k) {
		if w == t {
			return true
		}
	}
	return false
}

func precedes(order []history.TxnID, a, b history.TxnID) bool {
	i, j := -1, -1
	for at, t := range order {
		switch t {
		case a:
			i = at
		case b:
			j = at
		}
	}
	return i >= 0 && j >= 0 && i < j
}

func containsAnomaly(as []graph.Anomaly, a graph.Anomaly) bool {
	for _, each := range as {
		if each == a {
			return true
		}
	}
	return false
}
