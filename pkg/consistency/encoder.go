package consistency

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/polycheck/polycheck/pkg/graph"
	"github.com/polycheck/polycheck/pkg/history"
	"github.com/polycheck/polycheck/pkg/solver"
)

type pair struct {
	from, to history.TxnID
}

// orderVariable states that from precedes to in the commit order, or in
// the version order of key when key is set.
type orderVariable struct {
	id          solver.Identifier
	key         history.Key
	versioned   bool
	from, to    history.TxnID
	constraints []solver.Constraint
}

var _ solver.Variable = (*orderVariable)(nil)

func (v *orderVariable) Identifier() solver.Identifier {
	return v.id
}

func (v *orderVariable) Constraints() []solver.Constraint {
	return v.constraints
}

func (v *orderVariable) String() string {
	if v.versioned {
		return fmt.Sprintf("%s <%s %s", v.from, v.key, v.to)
	}
	return fmt.Sprintf("%s < %s", v.from, v.to)
}

type literal struct {
	v   *orderVariable
	neg bool
}

func pos(v *orderVariable) literal {
	return literal{v: v}
}

func neg(v *orderVariable) literal {
	return literal{v: v, neg: true}
}

// holds evaluates the literal against a set of true variables.
func (l literal) holds(truth map[*orderVariable]bool) bool {
	return truth[l.v] != l.neg
}

// axiomConstraint is a clause attributed to the axiom instance it
// encodes, so that a core can be explained.
type axiomConstraint struct {
	solver.Constraint
	instance Instance
	lits     []literal
}

func (c axiomConstraint) String(subject solver.Identifier) string {
	return c.instance.String()
}

// Stats reports the size of an encoding.
type Stats struct {
	Nodes       int `json:"nodes"`
	Variables   int `json:"variables"`
	HardClauses int `json:"hardClauses"`
	Tracked     int `json:"tracked"`
	// Estimate is the clause bound checked against the limit before
	// generation.
	Estimate int `json:"estimate"`
}

// Clauses returns the total number of clauses.
func (s Stats) Clauses() int {
	return s.HardClauses + s.Tracked
}

// Encoding is the boolean formula stating that a history satisfies a
// model. It is built once per check and only read afterwards.
type Encoding struct {
	graph *graph.Graph
	model Model

	variables []solver.Variable
	co        map[pair]*orderVariable
	ww        map[history.Key]map[pair]*orderVariable
	seen      map[string]struct{}
	stats     Stats
}

type encodeConfig struct {
	maxClauses int
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeConfig)

// WithMaxClauses makes Encode fail with an EncodingTooLargeError when
// the encoding could need more than n clauses. Zero means no limit.
func WithMaxClauses(n int) EncodeOption {
	return func(c *encodeConfig) {
		c.maxClauses = n
	}
}

// Encode builds the formula stating that the history behind g satisfies
// m. It fails with a TriviallyViolatedError, without building anything,
// when the history has anomalies or its fixed edges are cyclic.
func Encode(g *graph.Graph, m Model, opts ...EncodeOption) (*Encoding, error) {
	var cfg encodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !m.Valid() {
		return nil, errors.Errorf("invalid consistency model %d", int(m))
	}
	name := g.Index().History().Name()

	if anomalies := g.Anomalies(); len(anomalies) > 0 {
		return nil, errors.WithStack(&TriviallyViolatedError{History: name, Model: m, Anomalies: anomalies})
	}
	if cycle := graph.FindCycle(g.Fixed()); cycle != nil {
		return nil, errors.WithStack(&TriviallyViolatedError{History: name, Model: m, Cycle: cycle})
	}

	e := &Encoding{
		graph: g,
		model: m,
		co:    make(map[pair]*orderVariable),
		ww:    make(map[history.Key]map[pair]*orderVariable),
		seen:  make(map[string]struct{}),
	}
	e.stats.Nodes = len(g.Nodes())
	e.stats.Estimate = estimate(g, m)
	if cfg.maxClauses > 0 && e.stats.Estimate > cfg.maxClauses {
		return nil, errors.WithStack(&EncodingTooLargeError{
			History: name,
			Model:   m,
			Clauses: e.stats.Estimate,
			Limit:   cfg.maxClauses,
		})
	}

	e.declare()
	e.orders()
	e.fixed()
	e.visibility()
	e.stats.Variables = len(e.variables)
	return e, nil
}

// Graph returns the graph the encoding was built from.
func (e *Encoding) Graph() *graph.Graph {
	return e.graph
}

// Model returns the encoded model.
func (e *Encoding) Model() Model {
	return e.model
}

// Stats returns the size of the encoding.
func (e *Encoding) Stats() Stats {
	return e.stats
}

// Variables returns the input of the satisfiability problem.
func (e *Encoding) Variables() []solver.Variable {
	return e.variables
}

// declare creates a commit-order variable for every ordered pair of
// nodes and a version-order variable for every ordered pair of writers
// of each key.
func (e *Encoding) declare() {
	nodes := e.graph.Nodes()
	for i, a := range nodes {
		for j, b := range nodes {
			if i == j {
				continue
			}
			v := &orderVariable{
				id:   solver.Identifier(fmt.Sprintf("co/%d/%d", i, j)),
				from: a,
				to:   b,
			}
			e.co[pair{a, b}] = v
			e.variables = append(e.variables, v)
		}
	}
	for k, ws := range e.graph.WriteSets() {
		vars := make(map[pair]*orderVariable)
		for _, a := range ws.Writers {
			for _, b := range ws.Writers {
				if a == b {
					continue
				}
				v := &orderVariable{
					id:        solver.Identifier(fmt.Sprintf("ww/%d/%d/%d", k, e.graph.Position(a), e.graph.Position(b))),
					key:       ws.Key,
					versioned: true,
					from:      a,
					to:        b,
				}
				vars[pair{a, b}] = v
				e.variables = append(e.variables, v)
			}
		}
		e.ww[ws.Key] = vars
	}
}

func (e *Encoding) commitOrder(a, b history.TxnID) *orderVariable {
	return e.co[pair{a, b}]
}

func (e *Encoding) versionOrder(k history.Key, a, b history.TxnID) *orderVariable {
	return e.ww[k][pair{a, b}]
}

func clauseKey(lits []literal) string {
	var b strings.Builder
	for _, l := range lits {
		if l.neg {
			b.WriteByte('-')
		}
		b.WriteString(string(l.v.id))
		b.WriteByte(' ')
	}
	return b.String()
}

func toSolver(lits []literal) solver.Constraint {
	ls := make([]solver.Literal, len(lits))
	for i, l := range lits {
		if l.neg {
			ls[i] = solver.Not(l.v.id)
		} else {
			ls[i] = solver.Is(l.v.id)
		}
	}
	return solver.Clause(ls...)
}

// hard adds a structural clause. It is attached to the variable of its
// last literal.
func (e *Encoding) hard(lits ...literal) {
	subject := lits[len(lits)-1].v
	subject.constraints = append(subject.constraints, solver.Structural(toSolver(lits)))
	e.stats.HardClauses++
}

// track adds an assumed clause for an axiom instance, unless the same
// clause was added before. It is attached to the variable of its last
// literal, the one the instance concludes.
func (e *Encoding) track(inst Instance, lits ...literal) {
	key := clauseKey(lits)
	if _, ok := e.seen[key]; ok {
		return
	}
	e.seen[key] = struct{}{}
	subject := lits[len(lits)-1].v
	subject.constraints = append(subject.constraints, axiomConstraint{
		Constraint: toSolver(lits),
		instance:   inst,
		lits:       lits,
	})
	e.stats.Tracked++
}

// estimate bounds the number of clauses Encode generates for g under m.
func estimate(g *graph.Graph, m Model) int {
	n := len(g.Nodes())
	total := n*(n-1) + n*(n-1)*(n-2)/3
	total += len(g.Fixed()) + n
	for _, ws := range g.WriteSets() {
		w := len(ws.Writers)
		total += 2*w*(w-1) + w*(w-1)*(w-2)/3 + w
	}
	for _, r := range g.Reads() {
		others := len(g.Writers(r.Key))
		per := 0
		if m.has(AxiomReadCommitted) {
			per++
		}
		if m.has(AxiomReadAtomic) {
			per++
		}
		if m.has(AxiomCausal) {
			per++
		}
		if m.has(AxiomPrefix) {
			per += len(g.Predecessors(r.Reader))
		}
		if m.has(AxiomConflict) {
			for _, y := range g.WriteKeys(r.Reader) {
				per += len(g.Writers(y))
			}
		}
		total += per * others
	}
	if m.has(AxiomSerializable) {
		total += len(g.Implications())
	}
	return total
}
