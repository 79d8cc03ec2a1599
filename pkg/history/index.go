package history

import (
	"golang.org/x/exp/slices"
)

// Observation is a read performed by a committed transaction, resolved
// to the transaction whose write it observed.
type Observation struct {
	Reader TxnID
	// Index is the position of the read among the reader's operations.
	Index int
	Key   Key
	Value Value
	// Source is the transaction whose write was observed, InitTxn for
	// the initial value.
	Source TxnID
	// Internal is set when the reader had already written Key before
	// this read; Source is then the reader itself.
	Internal bool
}

// Index is a validated, read-only view of a History with the lookups
// needed to build a dependency graph. An Index is safe for concurrent
// use.
type Index struct {
	h            *History
	txns         map[TxnID]*Transaction
	sessions     map[SessionID]*Session
	committed    []TxnID
	keys         []Key
	writes       map[Key]map[TxnID][]Value
	origins      map[Key]map[Value][]TxnID
	writers      map[Key][]TxnID
	observations map[TxnID][]Observation
}

// NewIndex validates h and returns an Index over it. It fails with a
// MalformedHistoryError when a read cannot be attributed to exactly one
// write, or when sessions and transactions disagree.
func NewIndex(h *History) (*Index, error) {
	idx := &Index{
		h:            h,
		txns:         make(map[TxnID]*Transaction, len(h.Transactions)),
		sessions:     make(map[SessionID]*Session, len(h.Sessions)),
		writes:       make(map[Key]map[TxnID][]Value),
		origins:      make(map[Key]map[Value][]TxnID),
		writers:      make(map[Key][]TxnID),
		observations: make(map[TxnID][]Observation),
	}

	for i := range h.Transactions {
		t := &h.Transactions[i]
		switch {
		case t.ID == "":
			return nil, malformed(h, "transaction %d has no id", i)
		case t.ID == InitTxn:
			return nil, malformed(h, "transaction id %q is reserved for the initial state", t.ID)
		}
		if _, ok := idx.txns[t.ID]; ok {
			return nil, malformed(h, "duplicate transaction %q", t.ID)
		}
		for j, op := range t.Operations {
			if op.Key == "" {
				return nil, malformed(h, "operation %d of %s has an empty key", j, t.ID)
			}
			if op.Kind != OpRead && op.Kind != OpWrite {
				return nil, malformed(h, "operation %d of %s has unknown kind %q", j, t.ID, op.Kind)
			}
		}
		idx.txns[t.ID] = t
	}

	listed := make(map[TxnID]SessionID, len(h.Transactions))
	for i := range h.Sessions {
		s := &h.Sessions[i]
		if _, ok := idx.sessions[s.ID]; ok {
			return nil, malformed(h, "duplicate session %q", s.ID)
		}
		idx.sessions[s.ID] = s
		for _, id := range s.Transactions {
			t, ok := idx.txns[id]
			if !ok {
				return nil, malformed(h, "session %q lists unknown transaction %q", s.ID, id)
			}
			if prev, ok := listed[id]; ok {
				return nil, malformed(h, "transaction %q is listed by sessions %q and %q", id, prev, s.ID)
			}
			if t.Session != s.ID {
				return nil, malformed(h, "transaction %q belongs to session %q but is listed by %q", id, t.Session, s.ID)
			}
			listed[id] = s.ID
			if t.Committed {
				idx.committed = append(idx.committed, id)
			}
		}
	}
	for _, t := range h.Transactions {
		if _, ok := listed[t.ID]; !ok {
			return nil, malformed(h, "transaction %q is not listed by any session", t.ID)
		}
	}

	seen := make(map[Key]struct{})
	for _, t := range h.Transactions {
		for _, op := range t.Operations {
			if _, ok := seen[op.Key]; !ok {
				seen[op.Key] = struct{}{}
				idx.keys = append(idx.keys, op.Key)
			}
			if op.Kind != OpWrite {
				continue
			}
			if idx.writes[op.Key] == nil {
				idx.writes[op.Key] = make(map[TxnID][]Value)
				idx.origins[op.Key] = make(map[Value][]TxnID)
			}
			idx.writes[op.Key][t.ID] = append(idx.writes[op.Key][t.ID], op.Value)
			if !slices.Contains(idx.origins[op.Key][op.Value], t.ID) {
				idx.origins[op.Key][op.Value] = append(idx.origins[op.Key][op.Value], t.ID)
			}
		}
	}
	slices.Sort(idx.keys)

	for _, id := range idx.committed {
		t := idx.txns[id]
		written := make(map[Key]bool)
		for _, op := range t.Operations {
			if op.Kind == OpWrite && !written[op.Key] {
				written[op.Key] = true
				idx.writers[op.Key] = append(idx.writers[op.Key], id)
			}
		}
	}

	for _, id := range idx.committed {
		obs, err := idx.observe(idx.txns[id])
		if err != nil {
			return nil, err
		}
		idx.observations[id] = obs
	}
	return idx, nil
}

func (idx *Index) observe(t *Transaction) ([]Observation, error) {
	var obs []Observation
	written := make(map[Key]bool)
	for i, op := range t.Operations {
		if op.Kind == OpWrite {
			written[op.Key] = true
			continue
		}
		o := Observation{
			Reader: t.ID,
			Index:  i,
			Key:    op.Key,
			Value:  op.Value,
		}
		if written[op.Key] {
			o.Source = t.ID
			o.Internal = true
			obs = append(obs, o)
			continue
		}
		candidates := idx.Origins(op.Key, op.Value)
		self := false
		if j := slices.Index(candidates, t.ID); j >= 0 {
			candidates = slices.Delete(candidates, j, j+1)
			self = true
		}
		switch len(candidates) {
		case 0:
			if !self {
				return nil, malformed(idx.h, "%s in %s observes a value that was never written", op, t.ID)
			}
			// Observing its own later write; flagged by the graph
			// builder.
			o.Source = t.ID
		case 1:
			o.Source = candidates[0]
		default:
			return nil, malformed(idx.h, "%s in %s has ambiguous origin: written by %v", op, t.ID, candidates)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// History returns the indexed history.
func (idx *Index) History() *History {
	return idx.h
}

// Transaction returns the transaction with the given ID.
func (idx *Index) Transaction(id TxnID) (*Transaction, bool) {
	t, ok := idx.txns[id]
	return t, ok
}

// Session returns the session with the given ID.
func (idx *Index) Session(id SessionID) (*Session, bool) {
	s, ok := idx.sessions[id]
	return s, ok
}

// Committed returns the committed transactions, session by session in
// session order.
func (idx *Index) Committed() []TxnID {
	return idx.committed
}

// IsCommitted reports whether id names a committed transaction or the
// initial state.
func (idx *Index) IsCommitted(id TxnID) bool {
	if id == InitTxn {
		return true
	}
	t, ok := idx.txns[id]
	return ok && t.Committed
}

// Keys returns every key accessed by the history, sorted.
func (idx *Index) Keys() []Key {
	return idx.keys
}

// Writers returns the committed transactions that write k, in the order
// of Committed. The initial state is not included.
func (idx *Index) Writers(k Key) []TxnID {
	return idx.writers[k]
}

// WritesOf returns every value txn wrote to k, in program order.
func (idx *Index) WritesOf(k Key, txn TxnID) []Value {
	if txn == InitTxn {
		if v, ok := idx.h.InitialValue(k); ok {
			return []Value{v}
		}
		return nil
	}
	return idx.writes[k][txn]
}

// LastWrite returns the value txn installed on k: its last write of k.
func (idx *Index) LastWrite(k Key, txn TxnID) (Value, bool) {
	vs := idx.WritesOf(k, txn)
	if len(vs) == 0 {
		return 0, false
	}
	return vs[len(vs)-1], true
}

// Origins returns every transaction, committed or not, that wrote v to
// k, including InitTxn when v is the declared initial value.
func (idx *Index) Origins(k Key, v Value) []TxnID {
	var out []TxnID
	if init, ok := idx.h.InitialValue(k); ok && init == v {
		out = append(out, InitTxn)
	}
	return append(out, idx.origins[k][v]...)
}

// WriterOf returns the unique committed transaction whose final write of
// k is v, or InitTxn when v is the declared initial value of k. Aborted
// and overwritten writes do not count.
func (idx *Index) WriterOf(k Key, v Value) (TxnID, bool) {
	var found []TxnID
	for _, t := range idx.Origins(k, v) {
		if t == InitTxn {
			found = append(found, t)
			continue
		}
		if last, _ := idx.LastWrite(k, t); idx.IsCommitted(t) && last == v {
			found = append(found, t)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// Observations returns the resolved reads of a committed transaction in
// program order.
func (idx *Index) Observations(txn TxnID) []Observation {
	return idx.observations[txn]
}
