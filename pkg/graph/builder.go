package graph

import (
	"golang.org/x/exp/slices"

	"github.com/polycheck/polycheck/pkg/history"
)

// FromHistory indexes h and builds its polygraph.
func FromHistory(h *history.History) (*Graph, error) {
	idx, err := history.NewIndex(h)
	if err != nil {
		return nil, err
	}
	return Build(idx)
}

// Build derives the polygraph of an indexed history. It performs no I/O
// and its only failures are malformed histories.
func Build(idx *history.Index) (*Graph, error) {
	g := &Graph{
		index:     idx,
		nodes:     append([]history.TxnID{history.InitTxn}, idx.Committed()...),
		position:  make(map[history.TxnID]int),
		preds:     make(map[history.TxnID][]history.TxnID),
		session:   make(map[history.TxnID]sessionSlot),
		writeKeys: make(map[history.TxnID][]history.Key),
		readsOf:   make(map[history.TxnID][]Read),
	}
	for i, t := range g.nodes {
		g.position[t] = i
	}

	seen := make(map[Edge]struct{})
	addFixed := func(e Edge) {
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		g.fixed = append(g.fixed, e)
		if e.From != history.InitTxn && !slices.Contains(g.preds[e.To], e.From) {
			g.preds[e.To] = append(g.preds[e.To], e.From)
		}
	}

	for _, s := range idx.History().Sessions {
		var prev history.TxnID
		pos := 0
		for _, id := range s.Transactions {
			if !idx.IsCommitted(id) {
				continue
			}
			g.session[id] = sessionSlot{id: s.ID, pos: pos}
			pos++
			if prev != "" {
				addFixed(Edge{From: prev, To: id, Kind: SessionOrder})
			}
			prev = id
		}
	}

	for _, k := range idx.Keys() {
		writers := idx.Writers(k)
		_, hasInit := idx.History().InitialValue(k)
		if len(writers) == 0 && !hasInit {
			continue
		}
		ws := WriteSet{Key: k, Writers: append([]history.TxnID{history.InitTxn}, writers...)}
		g.writeSets = append(g.writeSets, ws)
		for _, w := range writers {
			g.writeKeys[w] = append(g.writeKeys[w], k)
		}
	}

	for _, t := range idx.Committed() {
		for _, o := range idx.Observations(t) {
			if a, ok := classify(idx, o); ok {
				g.anomalies = append(g.anomalies, a)
				continue
			}
			if o.Internal {
				continue
			}
			r := Read{Reader: o.Reader, Index: o.Index, Key: o.Key, Writer: o.Source}
			g.reads = append(g.reads, r)
			g.readsOf[t] = append(g.readsOf[t], r)
			addFixed(Edge{From: o.Source, To: o.Reader, Kind: WriteRead, Key: o.Key})
		}
	}

	implied := make(map[Implication]struct{})
	for _, r := range g.reads {
		for _, w := range g.Writers(r.Key) {
			if w == history.InitTxn || w == r.Writer || w == r.Reader {
				continue
			}
			i := Implication{Reader: r.Reader, Key: r.Key, Writer: r.Writer, Overwriter: w}
			if _, ok := implied[i]; ok {
				continue
			}
			implied[i] = struct{}{}
			g.implications = append(g.implications, i)
		}
	}

	return g, nil
}

// classify reports whether an observation is anomalous on its own.
func classify(idx *history.Index, o history.Observation) (Anomaly, bool) {
	a := Anomaly{
		Reader: o.Reader,
		Index:  o.Index,
		Key:    o.Key,
		Value:  o.Value,
		Writer: o.Source,
	}
	switch {
	case o.Internal:
		t, _ := idx.Transaction(o.Reader)
		var own history.Value
		for _, op := range t.Operations[:o.Index] {
			if op.Kind == history.OpWrite && op.Key == o.Key {
				own = op.Value
			}
		}
		if own != o.Value {
			a.Kind = InternalInconsistency
			return a, true
		}
	case o.Source == o.Reader:
		a.Kind = FutureRead
		return a, true
	case !idx.IsCommitted(o.Source):
		a.Kind = AbortedRead
		return a, true
	default:
		if last, _ := idx.LastWrite(o.Key, o.Source); last != o.Value {
			a.Kind = IntermediateRead
			return a, true
		}
	}
	return Anomaly{}, false
}
