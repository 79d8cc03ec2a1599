package consistency

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polycheck/polycheck/pkg/history"
)

// refTxn is a committed transaction of a generated history. Reads come
// before writes and every key is written at most once, so every read
// observes a final write of another transaction or the initial state.
type refTxn struct {
	id      history.TxnID
	session int
	pos     int
	reads   []refRead
	writes  []history.Key
}

type refRead struct {
	key  history.Key
	from history.TxnID
}

type refHistory struct {
	txns []refTxn
	h    *history.History
}

var refKeys = []history.Key{"x", "y"}

func randomHistory(rng *rand.Rand, n int) refHistory {
	b := history.NewBuilder(fmt.Sprintf("random-%d", rng.Int63()))
	for _, k := range refKeys {
		b.Initial(k, 0)
	}
	next := history.Value(1)
	type write struct {
		txn   history.TxnID
		value history.Value
	}
	written := make(map[history.Key][]write)

	var rh refHistory
	sessions := 1 + rng.Intn(2)
	positions := make([]int, sessions)
	planned := make([][]history.Key, n)
	for i := 0; i < n; i++ {
		for _, k := range refKeys {
			if rng.Intn(2) == 0 {
				planned[i] = append(planned[i], k)
			}
		}
	}
	// Values are assigned up front so a transaction can read a write of
	// any other transaction, including later ones.
	for i := 0; i < n; i++ {
		id := history.TxnID(fmt.Sprintf("t%d", i+1))
		for _, k := range planned[i] {
			written[k] = append(written[k], write{txn: id, value: next})
			next++
		}
	}

	for i := 0; i < n; i++ {
		id := history.TxnID(fmt.Sprintf("t%d", i+1))
		s := rng.Intn(sessions)
		t := refTxn{id: id, session: s, pos: positions[s], writes: planned[i]}
		positions[s]++

		var ops []history.Operation
		for _, k := range refKeys {
			if rng.Intn(2) == 0 {
				continue
			}
			var candidates []write
			candidates = append(candidates, write{txn: history.InitTxn, value: 0})
			for _, w := range written[k] {
				if w.txn != id {
					candidates = append(candidates, w)
				}
			}
			w := candidates[rng.Intn(len(candidates))]
			ops = append(ops, history.Read(k, w.value))
			t.reads = append(t.reads, refRead{key: k, from: w.txn})
		}
		for _, k := range planned[i] {
			for _, w := range written[k] {
				if w.txn == id {
					ops = append(ops, history.Write(k, w.value))
				}
			}
		}
		b.Commit(history.SessionID(fmt.Sprintf("s%d", s+1)), id, ops...)
		rh.txns = append(rh.txns, t)
	}
	rh.h = b.History()
	return rh
}

// satisfies decides m by enumerating every commit order and checking
// the visibility axioms literally, with session order taken as the full
// order within a session.
func (rh refHistory) satisfies(m Model) bool {
	byID := make(map[history.TxnID]refTxn, len(rh.txns))
	for _, t := range rh.txns {
		byID[t.id] = t
	}
	so := func(a, b history.TxnID) bool {
		ta, okA := byID[a]
		tb, okB := byID[b]
		return okA && okB && ta.session == tb.session && ta.pos < tb.pos
	}
	wr := func(a, b history.TxnID) bool {
		for _, r := range byID[b].reads {
			if r.from == a {
				return true
			}
		}
		return false
	}
	writes := func(t history.TxnID, k history.Key) bool {
		for _, w := range byID[t].writes {
			if w == k {
				return true
			}
		}
		return false
	}
	hb := make(map[[2]history.TxnID]bool)
	for _, a := range rh.txns {
		for _, b := range rh.txns {
			if so(a.id, b.id) || wr(a.id, b.id) {
				hb[[2]history.TxnID{a.id, b.id}] = true
			}
		}
	}
	for _, c := range rh.txns {
		for _, a := range rh.txns {
			for _, b := range rh.txns {
				if hb[[2]history.TxnID{a.id, c.id}] && hb[[2]history.TxnID{c.id, b.id}] {
					hb[[2]history.TxnID{a.id, b.id}] = true
				}
			}
		}
	}

	ids := make([]history.TxnID, len(rh.txns))
	for i, t := range rh.txns {
		ids[i] = t.id
	}
	found := false
	permute(ids, func(order []history.TxnID) bool {
		co := map[history.TxnID]int{history.InitTxn: -1}
		for i, t := range order {
			co[t] = i
		}
		before := func(a, b history.TxnID) bool { return co[a] < co[b] }
		for _, a := range ids {
			for _, b := range ids {
				if (so(a, b) || wr(a, b)) && !before(a, b) {
					return false
				}
			}
		}
		visible := func(t2, t3 history.TxnID, at int) bool {
			switch m {
			case ReadCommitted:
				for _, r := range byID[t3].reads[:at] {
					if r.from == t2 {
						return true
					}
				}
				return false
			case ReadAtomic:
				return so(t2, t3) || wr(t2, t3)
			case CausalConsistency:
				return hb[[2]history.TxnID{t2, t3}]
			case PrefixConsistency, SnapshotIsolation:
				for _, t4 := range ids {
					if (t4 == t2 || before(t2, t4)) && (so(t4, t3) || wr(t4, t3)) {
						return true
					}
				}
				if m == PrefixConsistency {
					return false
				}
				for _, y := range byID[t3].writes {
					for _, t4 := range ids {
						if t4 != t3 && writes(t4, y) && (t4 == t2 || before(t2, t4)) && before(t4, t3) {
							return true
						}
					}
				}
				return false
			}
			return before(t2, t3)
		}
		for _, t3 := range rh.txns {
			for at, r := range t3.reads {
				for _, t2 := range ids {
					if t2 == t3.id || t2 == r.from || !writes(t2, r.key) {
						continue
					}
					if visible(t2, t3.id, at) && !before(t2, r.from) {
						return false
					}
				}
			}
		}
		found = true
		return true
	})
	return found
}

// permute calls fn with every permutation of ids until fn returns true.
func permute(ids []history.TxnID, fn func([]history.TxnID) bool) bool {
	var rec func(k int) bool
	rec = func(k int) bool {
		if k == len(ids) {
			return fn(ids)
		}
		for i := k; i < len(ids); i++ {
			ids[k], ids[i] = ids[i], ids[k]
			if rec(k + 1) {
				ids[k], ids[i] = ids[i], ids[k]
				return true
			}
			ids[k], ids[i] = ids[i], ids[k]
		}
		return false
	}
	return rec(0)
}

func TestVerdictsMatchExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		rh := randomHistory(rng, 3+rng.Intn(3))
		for _, m := range Models {
			want := rh.satisfies(m)
			got := check(t, rh.h, m).satisfied
			if !assert.Equal(t, want, got, "%s under %s: %+v", rh.h.ID, m, rh.h) {
				return
			}
		}
	}
}
