package solver

// Identifier names a Variable. Encoders derive it from the ordered pair
// the variable stands for, so it is unique within one Solve input.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// Variable is a boolean decision of the encoded problem, such as
// "a commits before b". A selected Variable is true in the model.
type Variable interface {
	Identifier() Identifier
	// Constraints are the clauses this Variable contributes.
	// Tracked constraints may end up in a NotSatisfiable core.
	Constraints() []Constraint
}

// zeroVariable stands in for an unknown literal in VariableOf.
type zeroVariable struct{}

var _ Variable = zeroVariable{}

func (zeroVariable) Identifier() Identifier {
	return ""
}

func (zeroVariable) Constraints() []Constraint {
	return nil
}
