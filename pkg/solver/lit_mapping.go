package solver

import (
	"fmt"
	"strings"

	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

type DuplicateIdentifier Identifier

func (e DuplicateIdentifier) Error() string {
	return fmt.Sprintf("duplicate identifier %q in input", Identifier(e))
}

// SolverInternalError aggregates inconsistencies between the input and
// the SAT formula. It indicates a bug in the caller or in this package.
type SolverInternalError []error

func (e SolverInternalError) Error() string {
	if len(e) == 0 {
		return "internal solver failure"
	}
	s := make([]string, len(e))
	for i, err := range e {
		s[i] = err.Error()
	}
	return fmt.Sprintf("internal solver failure: %d errors encountered: %s", len(s), strings.Join(s, ", "))
}

// Stats describes the size of a compiled problem.
type Stats struct {
	Variables   int
	HardClauses int
	Assumptions int
}

// Clauses returns the number of clauses the problem contributes,
// counting one per assumed constraint.
func (s Stats) Clauses() int {
	return s.HardClauses + s.Assumptions
}

// litMapping performs translation between the input and output types of
// Solve (Constraints, Variables, etc.) and the variables that
// appear in the SAT formula.
type litMapping struct {
	inorder     []Variable
	variables   map[z.Lit]Variable
	lits        map[Identifier]z.Lit
	constraints map[z.Lit]AppliedConstraint
	assumptions []z.Lit
	position    map[z.Lit]int
	hard        [][]z.Lit
	c           *logic.C
	errs        SolverInternalError
}

// newLitMapping returns a new litMapping with its state initialized based on
// the provided slice of Variables. This includes construction of
// the translation tables between Variables/Constraints and the
// inputs to the underlying solver.
func newLitMapping(variables []Variable) (*litMapping, error) {
	d := litMapping{
		inorder:     variables,
		variables:   make(map[z.Lit]Variable, len(variables)),
		lits:        make(map[Identifier]z.Lit, len(variables)),
		constraints: make(map[z.Lit]AppliedConstraint),
		position:    make(map[z.Lit]int),
		c:           logic.NewCCap(len(variables)),
	}

	// First pass to assign lits:
	for _, variable := range variables {
		im := d.c.Lit()
		if _, ok := d.lits[variable.Identifier()]; ok {
			return nil, DuplicateIdentifier(variable.Identifier())
		}
		d.lits[variable.Identifier()] = im
		d.variables[im] = variable
	}

	for _, variable := range variables {
		for _, constraint := range variable.Constraints() {
			errs := len(d.errs)
			ms := constraint.apply(&d, variable.Identifier())
			if len(d.errs) > errs {
				// Refers to a variable that was not
				// provided; reported by Solve.
				continue
			}
			if constraint.hard() {
				d.hard = append(d.hard, ms)
				continue
			}
			m := d.c.Ors(ms...)
			if _, ok := d.constraints[m]; ok {
				// An equivalent constraint is already
				// assumed.
				continue
			}
			d.constraints[m] = AppliedConstraint{
				Variable:   variable,
				Constraint: constraint,
			}
			d.position[m] = len(d.assumptions)
			d.assumptions = append(d.assumptions, m)
		}
	}

	return &d, nil
}

// LitOf returns the positive literal corresponding to the Variable
// with the given Identifier.
func (d *litMapping) LitOf(id Identifier) z.Lit {
	m, ok := d.lits[id]
	if ok {
		return m
	}
	d.errs = append(d.errs, fmt.Errorf("variable %q referenced but not provided", id))
	return z.LitNull
}

// VariableOf returns the Variable corresponding to the provided
// literal, or a zeroVariable if no such Variable exists.
func (d *litMapping) VariableOf(m z.Lit) Variable {
	i, ok := d.variables[m]
	if ok {
		return i
	}
	d.errs = append(d.errs, fmt.Errorf("no variable corresponding to %s", m))
	return zeroVariable{}
}

// ConstraintOf returns the constraint application corresponding to
// the provided literal, or a zeroConstraint if no such constraint
// exists.
func (d *litMapping) ConstraintOf(m z.Lit) AppliedConstraint {
	if a, ok := d.constraints[m]; ok {
		return a
	}
	d.errs = append(d.errs, fmt.Errorf("no constraint corresponding to %s", m))
	return AppliedConstraint{
		Variable:   zeroVariable{},
		Constraint: zeroConstraint{},
	}
}

// Error returns a single error value that is an aggregation of all
// errors encountered during a litMapping's lifetime, or nil if there have
// been no errors. A non-nil return value likely indicates a problem
// with the solver or constraint implementations.
func (d *litMapping) Error() error {
	if len(d.errs) == 0 {
		return nil
	}
	return d.errs
}

// Stats returns the size of the compiled problem.
func (d *litMapping) Stats() Stats {
	return Stats{
		Variables:   len(d.inorder),
		HardClauses: len(d.hard),
		Assumptions: len(d.assumptions),
	}
}

// AddConstraints adds the circuit of assumed constraints and every hard
// clause to the solver g.
func (d *litMapping) AddConstraints(g inter.S) {
	d.c.ToCnf(g)
	for _, ms := range d.hard {
		for _, m := range ms {
			g.Add(m)
		}
		g.Add(z.LitNull)
	}
}

// AssumeConstraints assumes every non-hard constraint, in input order.
func (d *litMapping) AssumeConstraints(s inter.S) {
	s.Assume(d.assumptions...)
}

// Variables returns the Variables assigned true by the last solve, in
// input order.
func (d *litMapping) Variables(g inter.S) []Variable {
	var result []Variable
	for _, i := range d.inorder {
		if g.Value(d.LitOf(i.Identifier())) {
			result = append(result, i)
		}
	}
	return result
}

// Why returns the failed assumptions of the last solve that stand for
// constraints.
func (d *litMapping) Why(g inter.Assumable) []z.Lit {
	whys := g.Why(nil)
	ms := make([]z.Lit, 0, len(whys))
	for _, why := range whys {
		if _, ok := d.constraints[why]; ok {
			ms = append(ms, why)
		}
	}
	return ms
}

func (d *litMapping) constraintsOf(ms []z.Lit) []AppliedConstraint {
	as := make([]AppliedConstraint, 0, len(ms))
	for _, m := range ms {
		as = append(as, d.ConstraintOf(m))
	}
	return as
}
