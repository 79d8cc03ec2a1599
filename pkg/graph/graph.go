package graph

import (
	"fmt"
	"sync"

	"github.com/polycheck/polycheck/pkg/history"
)

// EdgeKind labels the relation an Edge belongs to.
type EdgeKind string

const (
	// SessionOrder edges connect consecutive committed transactions of
	// a session.
	SessionOrder EdgeKind = "SO"
	// WriteRead edges connect a writer to a transaction that observed
	// its write.
	WriteRead EdgeKind = "WR"
	// WriteWrite edges order two writers of the same key. They are
	// never derived from a history; they come from a chosen version
	// order.
	WriteWrite EdgeKind = "WW"
	// ReadWrite edges connect a reader to a writer that overwrote the
	// version it observed.
	ReadWrite EdgeKind = "RW"
)

// Edge is a labeled dependency between two transactions. Key is empty
// for session order.
type Edge struct {
	From history.TxnID `json:"from"`
	To   history.TxnID `json:"to"`
	Kind EdgeKind      `json:"kind"`
	Key  history.Key   `json:"key,omitempty"`
}

func (e Edge) String() string {
	if e.Key == "" {
		return fmt.Sprintf("%s -%s-> %s", e.From, e.Kind, e.To)
	}
	return fmt.Sprintf("%s -%s(%s)-> %s", e.From, e.Kind, e.Key, e.To)
}

// WriteSet is the set of committed writers of a key, InitTxn first. The
// order between the other writers is unresolved.
type WriteSet struct {
	Key     history.Key
	Writers []history.TxnID
}

// Read is an external read of Key by Reader observing Writer's final
// write.
type Read struct {
	Reader history.TxnID
	// Index is the position of the read among the reader's operations.
	Index  int
	Key    history.Key
	Writer history.TxnID
}

// Implication is a read-write anti-dependency conditional on the
// version order of Key: if Writer's version precedes Overwriter's, then
// Reader must precede Overwriter.
type Implication struct {
	Reader     history.TxnID
	Key        history.Key
	Writer     history.TxnID
	Overwriter history.TxnID
}

// Edge returns the anti-dependency edge the implication adds.
func (i Implication) Edge() Edge {
	return Edge{From: i.Reader, To: i.Overwriter, Kind: ReadWrite, Key: i.Key}
}

func (i Implication) String() string {
	return fmt.Sprintf("%s -WW(%s)-> %s implies %s", i.Writer, i.Key, i.Overwriter, i.Edge())
}

// AnomalyKind names a defect visible in a history without any ordering
// choice. Every anomaly violates every supported model.
type AnomalyKind string

const (
	// AbortedRead is a read of a value only an aborted transaction
	// wrote.
	AbortedRead AnomalyKind = "aborted-read"
	// IntermediateRead is a read of a value another transaction later
	// overwrote within itself.
	IntermediateRead AnomalyKind = "intermediate-read"
	// InternalInconsistency is a read that misses the reader's own
	// preceding write of the key.
	InternalInconsistency AnomalyKind = "internal-inconsistency"
	// FutureRead is a read of a value the reader itself writes later.
	FutureRead AnomalyKind = "future-read"
)

// Anomaly is a single offending read.
type Anomaly struct {
	Kind   AnomalyKind   `json:"kind"`
	Reader history.TxnID `json:"reader"`
	Index  int           `json:"index"`
	Key    history.Key   `json:"key"`
	Value  history.Value `json:"value"`
	Writer history.TxnID `json:"writer"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: operation %d of %s reads %s=%d from %s", a.Kind, a.Index, a.Reader, a.Key, a.Value, a.Writer)
}

// Graph is the polygraph of a history: the fixed session-order and
// write-read edges, the unresolved write sets, and the read-write
// implications that depend on how those write sets are ordered. A Graph
// belongs to a single check and is not safe for concurrent mutation;
// once built it is only read.
type Graph struct {
	index        *history.Index
	nodes        []history.TxnID
	position     map[history.TxnID]int
	fixed        []Edge
	preds        map[history.TxnID][]history.TxnID
	session      map[history.TxnID]sessionSlot
	writeSets    []WriteSet
	writeKeys    map[history.TxnID][]history.Key
	reads        []Read
	readsOf      map[history.TxnID][]Read
	implications []Implication
	anomalies    []Anomaly

	hbOnce sync.Once
	hb     *Reachability
}

type sessionSlot struct {
	id  history.SessionID
	pos int
}

// Index returns the history index the graph was built from.
func (g *Graph) Index() *history.Index {
	return g.index
}

// Nodes returns InitTxn followed by the committed transactions.
func (g *Graph) Nodes() []history.TxnID {
	return g.nodes
}

// Position returns the position of t in Nodes, or -1.
func (g *Graph) Position(t history.TxnID) int {
	if p, ok := g.position[t]; ok {
		return p
	}
	return -1
}

// Fixed returns the session-order and write-read edges.
func (g *Graph) Fixed() []Edge {
	return g.fixed
}

// Predecessors returns the direct session-order and write-read
// predecessors of t, without InitTxn.
func (g *Graph) Predecessors(t history.TxnID) []history.TxnID {
	return g.preds[t]
}

// SessionOrder reports whether a and b are committed transactions of
// the same session and a comes first. Unlike Predecessors it is
// transitive.
func (g *Graph) SessionOrder(a, b history.TxnID) bool {
	sa, ok := g.session[a]
	if !ok {
		return false
	}
	sb, ok := g.session[b]
	return ok && sa.id == sb.id && sa.pos < sb.pos
}

// WriteSets returns the write set of every written key, sorted by key.
func (g *Graph) WriteSets() []WriteSet {
	return g.writeSets
}

// Writers returns the write set of k, InitTxn first.
func (g *Graph) Writers(k history.Key) []history.TxnID {
	for _, ws := range g.writeSets {
		if ws.Key == k {
			return ws.Writers
		}
	}
	return nil
}

// WriteKeys returns the keys t writes, sorted.
func (g *Graph) WriteKeys(t history.TxnID) []history.Key {
	return g.writeKeys[t]
}

// Reads returns every external read in node order, then program order.
func (g *Graph) Reads() []Read {
	return g.reads
}

// ReadsOf returns the external reads of t in program order.
func (g *Graph) ReadsOf(t history.TxnID) []Read {
	return g.readsOf[t]
}

// Implications returns the conditional read-write anti-dependencies.
func (g *Graph) Implications() []Implication {
	return g.implications
}

// Anomalies returns the reads that violate every model regardless of
// ordering.
func (g *Graph) Anomalies() []Anomaly {
	return g.anomalies
}

// HappensBefore returns the transitive closure of the fixed edges.
func (g *Graph) HappensBefore() *Reachability {
	g.hbOnce.Do(func() {
		g.hb = NewReachability(g.nodes, g.fixed)
	})
	return g.hb
}
