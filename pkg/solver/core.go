package solver

import (
	"context"
	"sort"
	"time"

	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/z"
)

// core shrinks the failed assumptions of an unsatisfiable problem by
// deletion: each assumption is dropped in turn and kept out whenever the
// rest is still unsatisfiable. The result is minimal when the bound is
// not reached first.
type core struct {
	g      inter.S
	litMap *litMapping
	tracer Tracer
	bound  int
	poll   time.Duration
}

func (c *core) shrink(ctx context.Context, ms []z.Lit) []AppliedConstraint {
	ms = c.ordered(ms)
	attempts := 0
	for i := 0; i < len(ms) && attempts < c.bound; attempts++ {
		if ctx.Err() != nil {
			break
		}
		candidate := make([]z.Lit, 0, len(ms)-1)
		candidate = append(candidate, ms[:i]...)
		candidate = append(candidate, ms[i+1:]...)
		c.g.Assume(candidate...)

		outcome := solveWithin(ctx, c.g, c.poll)
		if outcome == unsatisfiable {
			// Every assumption before i is necessary, so the
			// new core keeps them as its prefix.
			ms = c.ordered(c.litMap.Why(c.g))
			c.tracer.Trace(position{litMap: c.litMap, core: ms})
			continue
		}
		if outcome != satisfiable {
			break
		}
		i++
	}
	return c.litMap.constraintsOf(ms)
}

// ordered sorts ms by the order the constraints were assumed in.
func (c *core) ordered(ms []z.Lit) []z.Lit {
	sort.Slice(ms, func(i, j int) bool {
		return c.litMap.position[ms[i]] < c.litMap.position[ms[j]]
	})
	return ms
}

type position struct {
	litMap *litMapping
	core   []z.Lit
}

func (p position) Variables() []Variable {
	var result []Variable
	seen := make(map[Identifier]struct{})
	for _, a := range p.Conflicts() {
		id := a.Variable.Identifier()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, a.Variable)
	}
	return result
}

func (p position) Conflicts() []AppliedConstraint {
	return p.litMap.constraintsOf(p.core)
}
