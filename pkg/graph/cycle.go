package graph

import (
	"github.com/polycheck/polycheck/pkg/history"
)

// Reachability is the strict transitive closure of a set of edges over
// a fixed node set, stored as one bitset per node.
type Reachability struct {
	index map[history.TxnID]int
	bits  [][]uint64
}

// NewReachability computes the transitive closure of edges over nodes.
// Edges touching unknown nodes are ignored.
func NewReachability(nodes []history.TxnID, edges []Edge) *Reachability {
	r := &Reachability{
		index: make(map[history.TxnID]int, len(nodes)),
		bits:  make([][]uint64, len(nodes)),
	}
	for i, n := range nodes {
		r.index[n] = i
	}
	words := (len(nodes) + 63) / 64
	succ := make([][]int, len(nodes))
	for _, e := range edges {
		from, ok := r.index[e.From]
		if !ok {
			continue
		}
		to, ok := r.index[e.To]
		if !ok {
			continue
		}
		succ[from] = append(succ[from], to)
	}

	stack := make([]int, 0, len(nodes))
	for i := range nodes {
		row := make([]uint64, words)
		stack = append(stack[:0], succ[i]...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if row[n/64]&(1<<(uint(n)%64)) != 0 {
				continue
			}
			row[n/64] |= 1 << (uint(n) % 64)
			stack = append(stack, succ[n]...)
		}
		r.bits[i] = row
	}
	return r
}

// Reaches reports whether b is reachable from a through at least one
// edge.
func (r *Reachability) Reaches(a, b history.TxnID) bool {
	i, ok := r.index[a]
	if !ok {
		return false
	}
	j, ok := r.index[b]
	if !ok {
		return false
	}
	return r.bits[i][j/64]&(1<<(uint(j)%64)) != 0
}

// Hop is a non-empty chain of edges that ShortestCycle treats as a
// single step from the first edge's source to the last edge's target.
type Hop []Edge

func (h Hop) from() history.TxnID {
	return h[0].From
}

func (h Hop) to() history.TxnID {
	return h[len(h)-1].To
}

// FindCycle returns a shortest cycle among edges, or nil if they are
// acyclic. The result is deterministic for a given edge order.
func FindCycle(edges []Edge) []Edge {
	hops := make([]Hop, len(edges))
	for i := range edges {
		hops[i] = Hop{edges[i]}
	}
	return ShortestCycle(hops)
}

// ShortestCycle returns the edges of a cycle with the fewest hops, hops
// expanded in order, or nil if the hops are acyclic. Ties are broken by
// the order in which nodes first appear in hops.
func ShortestCycle(hops []Hop) []Edge {
	var order []history.TxnID
	adj := make(map[history.TxnID][]int)
	for i, h := range hops {
		if len(h) == 0 {
			continue
		}
		if _, ok := adj[h.from()]; !ok {
			order = append(order, h.from())
		}
		adj[h.from()] = append(adj[h.from()], i)
	}

	var best []int
	for _, start := range order {
		if cycle := shortestReturn(start, hops, adj, len(best)); cycle != nil {
			best = cycle
			if len(best) == 1 {
				break
			}
		}
	}
	if best == nil {
		return nil
	}
	var out []Edge
	for _, i := range best {
		out = append(out, hops[i]...)
	}
	return out
}

// shortestReturn runs a breadth-first search from start and returns the
// hop indices of the shortest path back to start, provided it is
// shorter than limit (0 means no limit).
func shortestReturn(start history.TxnID, hops []Hop, adj map[history.TxnID][]int, limit int) []int {
	type visit struct {
		parent int // index into visits, -1 for the root
		hop    int
		depth  int
	}
	visits := []visit{{parent: -1, hop: -1}}
	at := []history.TxnID{start}
	seen := map[history.TxnID]bool{start: true}

	for head := 0; head < len(visits); head++ {
		v := visits[head]
		if limit > 0 && v.depth+1 >= limit {
			return nil
		}
		for _, i := range adj[at[head]] {
			next := hops[i].to()
			if next == start {
				path := []int{i}
				for p := head; visits[p].parent >= 0; p = visits[p].parent {
					path = append(path, visits[p].hop)
				}
				for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
					path[l], path[r] = path[r], path[l]
				}
				return path
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			visits = append(visits, visit{parent: head, hop: i, depth: v.depth + 1})
			at = append(at, next)
		}
	}
	return nil
}

// Linearize returns nodes in an order that respects every edge among
// them, preferring input order, or nil if the edges are cyclic. Edges
// touching other nodes are ignored.
func Linearize(nodes []history.TxnID, edges []Edge) []history.TxnID {
	index := make(map[history.TxnID]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	indegree := make([]int, len(nodes))
	succ := make([][]int, len(nodes))
	for _, e := range edges {
		from, ok := index[e.From]
		if !ok {
			continue
		}
		to, ok := index[e.To]
		if !ok {
			continue
		}
		succ[from] = append(succ[from], to)
		indegree[to]++
	}

	out := make([]history.TxnID, 0, len(nodes))
	done := make([]bool, len(nodes))
	for len(out) < len(nodes) {
		next := -1
		for i := range nodes {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil
		}
		done[next] = true
		out = append(out, nodes[next])
		for _, s := range succ[next] {
			indegree[s]--
		}
	}
	return out
}
