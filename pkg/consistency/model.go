package consistency

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Model is a transactional consistency model. Models are totally
// ordered by strength: every history a model admits is admitted by all
// weaker models.
type Model int

const (
	ReadCommitted Model = iota + 1
	ReadAtomic
	CausalConsistency
	PrefixConsistency
	SnapshotIsolation
	Serializability
)

// Models lists every supported model from weakest to strongest.
var Models = []Model{
	ReadCommitted,
	ReadAtomic,
	CausalConsistency,
	PrefixConsistency,
	SnapshotIsolation,
	Serializability,
}

var modelNames = map[Model]string{
	ReadCommitted:     "read-committed",
	ReadAtomic:        "read-atomic",
	CausalConsistency: "causal",
	PrefixConsistency: "prefix",
	SnapshotIsolation: "snapshot-isolation",
	Serializability:   "serializable",
}

var modelAliases = map[string]Model{
	"rc":  ReadCommitted,
	"ra":  ReadAtomic,
	"cc":  CausalConsistency,
	"pc":  PrefixConsistency,
	"si":  SnapshotIsolation,
	"ser": Serializability,
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// Valid reports whether m is a supported model.
func (m Model) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// Weaker reports whether m admits strictly more histories than other.
func (m Model) Weaker(other Model) bool {
	return m < other
}

// AtLeast reports whether m is as strong as other.
func (m Model) AtLeast(other Model) bool {
	return m >= other
}

// ParseModel accepts a model name as printed by String, or its usual
// abbreviation, in any case.
func ParseModel(s string) (Model, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modelNames {
		if name == s {
			return m, nil
		}
	}
	if m, ok := modelAliases[s]; ok {
		return m, nil
	}
	return 0, errors.Errorf("unknown consistency model %q", s)
}

// ParseModels parses a list of model names, keeping their order and
// dropping duplicates.
func ParseModels(names []string) ([]Model, error) {
	var out []Model
	seen := make(map[Model]bool)
	for _, name := range names {
		m, err := ParseModel(name)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

func (m Model) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errors.Errorf("invalid consistency model %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Axiom names a family of clauses of an encoding.
type Axiom string

const (
	// AxiomCommitOrder makes the commit order a strict total order.
	AxiomCommitOrder Axiom = "commit-order"
	// AxiomVersionOrder makes every version order a strict total order
	// contained in the commit order.
	AxiomVersionOrder Axiom = "version-order"
	// AxiomFixed puts session-order and write-read edges in the commit
	// order.
	AxiomFixed Axiom = "fixed-order"
	// AxiomInitial puts the initial state first in every order.
	AxiomInitial Axiom = "initial-state"

	AxiomReadCommitted Axiom = "read-committed"
	AxiomReadAtomic    Axiom = "read-atomic"
	AxiomCausal        Axiom = "causal"
	AxiomPrefix        Axiom = "prefix"
	AxiomConflict      Axiom = "conflict"
	AxiomSerializable  Axiom = "serializable"
)

// visibility lists the read visibility axioms of each model. Every
// model also carries the commit order, version order, fixed order and
// initial state axioms.
var visibility = map[Model][]Axiom{
	ReadCommitted:     {AxiomReadCommitted},
	ReadAtomic:        {AxiomReadCommitted, AxiomReadAtomic},
	CausalConsistency: {AxiomReadAtomic, AxiomCausal},
	PrefixConsistency: {AxiomCausal, AxiomPrefix},
	SnapshotIsolation: {AxiomCausal, AxiomPrefix, AxiomConflict},
	Serializability:   {AxiomCausal, AxiomSerializable},
}

// Axioms returns the visibility axioms of m.
func (m Model) Axioms() []Axiom {
	return visibility[m]
}

func (m Model) has(a Axiom) bool {
	for _, each := range visibility[m] {
		if each == a {
			return true
		}
	}
	return false
}
