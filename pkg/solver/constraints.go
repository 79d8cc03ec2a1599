package solver

import (
	"fmt"
	"strings"

	"github.com/go-air/gini/z"
)

// Constraint implementations limit the circumstances under which a
// particular Variable can appear in a solution.
type Constraint interface {
	String(subject Identifier) string
	// apply returns the literals of the clause the constraint stands
	// for. An empty clause cannot be satisfied.
	apply(lm *litMapping, subject Identifier) []z.Lit
	// hard reports whether the constraint is added permanently rather
	// than assumed. Hard constraints never appear in a NotSatisfiable
	// core.
	hard() bool
}

// zeroConstraint is returned by ConstraintOf in error cases.
type zeroConstraint struct{}

var _ Constraint = zeroConstraint{}

func (zeroConstraint) String(subject Identifier) string {
	return ""
}

func (zeroConstraint) apply(lm *litMapping, subject Identifier) []z.Lit {
	return nil
}

func (zeroConstraint) hard() bool {
	return false
}

// AppliedConstraint values compose a single Constraint with the
// Variable it applies to.
type AppliedConstraint struct {
	Variable   Variable
	Constraint Constraint
}

// String implements fmt.Stringer and returns a human-readable message
// representing the receiver.
func (a AppliedConstraint) String() string {
	return a.Constraint.String(a.Variable.Identifier())
}

type mandatory struct{}

func (constraint mandatory) String(subject Identifier) string {
	return fmt.Sprintf("%s is mandatory", subject)
}

func (constraint mandatory) apply(lm *litMapping, subject Identifier) []z.Lit {
	return []z.Lit{lm.LitOf(subject)}
}

func (constraint mandatory) hard() bool {
	return false
}

// Mandatory returns a Constraint that will permit only solutions that
// contain a particular Variable.
func Mandatory() Constraint {
	return mandatory{}
}

type prohibited struct{}

func (constraint prohibited) String(subject Identifier) string {
	return fmt.Sprintf("%s is prohibited", subject)
}

func (constraint prohibited) apply(lm *litMapping, subject Identifier) []z.Lit {
	return []z.Lit{lm.LitOf(subject).Not()}
}

func (constraint prohibited) hard() bool {
	return false
}

// Prohibited returns a Constraint that will reject any solution that
// contains a particular Variable.
func Prohibited() Constraint {
	return prohibited{}
}

func join(ids []Identifier) string {
	s := make([]string, len(ids))
	for i, each := range ids {
		s[i] = string(each)
	}
	return strings.Join(s, ", ")
}

type dependency []Identifier

func (constraint dependency) String(subject Identifier) string {
	if len(constraint) == 0 {
		return fmt.Sprintf("%s has a dependency without any candidates to satisfy it", subject)
	}
	return fmt.Sprintf("%s requires at least one of %s", subject, join(constraint))
}

func (constraint dependency) apply(lm *litMapping, subject Identifier) []z.Lit {
	m := []z.Lit{lm.LitOf(subject).Not()}
	for _, each := range constraint {
		m = append(m, lm.LitOf(each))
	}
	return m
}

func (constraint dependency) hard() bool {
	return false
}

// Dependency returns a Constraint that will only permit solutions
// containing a given Variable on the condition that at least one
// of the Variables identified by the given Identifiers also
// appears in the solution.
func Dependency(ids ...Identifier) Constraint {
	return dependency(ids)
}

type conflict Identifier

func (constraint conflict) String(subject Identifier) string {
	return fmt.Sprintf("%s conflicts with %s", subject, constraint)
}

func (constraint conflict) apply(lm *litMapping, subject Identifier) []z.Lit {
	return []z.Lit{lm.LitOf(subject).Not(), lm.LitOf(Identifier(constraint)).Not()}
}

func (constraint conflict) hard() bool {
	return false
}

// Conflict returns a Constraint that will permit solutions containing
// either the constrained Variable, the Variable identified by
// the given Identifier, or neither, but not both.
func Conflict(id Identifier) Constraint {
	return conflict(id)
}

type either Identifier

func (constraint either) String(subject Identifier) string {
	return fmt.Sprintf("either %s or %s is selected", subject, constraint)
}

func (constraint either) apply(lm *litMapping, subject Identifier) []z.Lit {
	return []z.Lit{lm.LitOf(subject), lm.LitOf(Identifier(constraint))}
}

func (constraint either) hard() bool {
	return false
}

// Either returns a Constraint that will only permit solutions
// containing the constrained Variable, the Variable identified by the
// given Identifier, or both.
func Either(id Identifier) Constraint {
	return either(id)
}

type impliedBy []Identifier

func (constraint impliedBy) String(subject Identifier) string {
	if len(constraint) == 0 {
		return fmt.Sprintf("%s is mandatory", subject)
	}
	return fmt.Sprintf("%s is implied by %s together", subject, join(constraint))
}

func (constraint impliedBy) apply(lm *litMapping, subject Identifier) []z.Lit {
	m := []z.Lit{lm.LitOf(subject)}
	for _, each := range constraint {
		m = append(m, lm.LitOf(each).Not())
	}
	return m
}

func (constraint impliedBy) hard() bool {
	return false
}

// ImpliedBy returns a Constraint that will only permit solutions
// containing every Variable identified by the given Identifiers if the
// constrained Variable is also selected.
func ImpliedBy(ids ...Identifier) Constraint {
	return impliedBy(ids)
}

// Literal is a possibly negated reference to a Variable.
type Literal struct {
	ID      Identifier
	Negated bool
}

// Is returns the positive Literal of id.
func Is(id Identifier) Literal {
	return Literal{ID: id}
}

// Not returns the negative Literal of id.
func Not(id Identifier) Literal {
	return Literal{ID: id, Negated: true}
}

func (l Literal) String() string {
	if l.Negated {
		return "not " + string(l.ID)
	}
	return string(l.ID)
}

type clause []Literal

func (constraint clause) String(subject Identifier) string {
	if len(constraint) == 0 {
		return fmt.Sprintf("%s carries an empty clause", subject)
	}
	s := make([]string, len(constraint))
	for i, l := range constraint {
		s[i] = l.String()
	}
	return fmt.Sprintf("%s requires %s", subject, strings.Join(s, " or "))
}

func (constraint clause) apply(lm *litMapping, subject Identifier) []z.Lit {
	m := make([]z.Lit, len(constraint))
	for i, l := range constraint {
		m[i] = lm.LitOf(l.ID)
		if l.Negated {
			m[i] = m[i].Not()
		}
	}
	return m
}

func (constraint clause) hard() bool {
	return false
}

// Clause returns a Constraint that will only permit solutions in
// which at least one of the given literals holds. The constrained
// Variable does not take part unless it is named by a literal; it only
// attributes the clause in a NotSatisfiable core.
func Clause(lits ...Literal) Constraint {
	return clause(lits)
}

type structural struct {
	Constraint
}

func (constraint structural) hard() bool {
	return true
}

// Structural returns a Constraint with the same meaning as c that is
// added to the problem permanently instead of being assumed. It is
// never reported in a NotSatisfiable core.
func Structural(c Constraint) Constraint {
	return structural{Constraint: c}
}
