package consistency

import (
	"sort"

	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/solver"
)

// Witness is a satisfying assignment read back as orders: a commit order
// over every committed transaction, InitTxn first, and the version order
// of every written key.
type Witness struct {
	CommitOrder []history.TxnID                 `json:"commitOrder"`
	Versions    map[history.Key][]history.TxnID `json:"versions"`
}

// Decode reads a witness from the variables a solver selected.
func (e *Encoding) Decode(selected []solver.Variable) *Witness {
	truth := make(map[*orderVariable]bool, len(selected))
	for _, v := range selected {
		if ov, ok := v.(*orderVariable); ok {
			truth[ov] = true
		}
	}

	w := &Witness{
		CommitOrder: rank(e.graph.Nodes(), func(a, b history.TxnID) bool {
			return truth[e.commitOrder(a, b)]
		}),
		Versions: make(map[history.Key][]history.TxnID),
	}
	for _, ws := range e.graph.WriteSets() {
		k := ws.Key
		w.Versions[k] = rank(ws.Writers, func(a, b history.TxnID) bool {
			return truth[e.versionOrder(k, a, b)]
		})
	}
	return w
}

// rank sorts nodes by the number of nodes before them, which is their
// position when before is a strict total order. Ties keep input order.
func rank(nodes []history.TxnID, before func(a, b history.TxnID) bool) []history.TxnID {
	count := make(map[history.TxnID]int, len(nodes))
	for _, a := range nodes {
		for _, b := range nodes {
			if a != b && before(b, a) {
				count[a]++
			}
		}
	}
	out := append([]history.TxnID(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return count[out[i]] < count[out[j]]
	})
	return out
}
