package history

import (
	"fmt"

	"github.com/mitchellh/hashstructure"
)

// TxnID identifies a transaction within a single History.
type TxnID string

// SessionID identifies a session within a single History.
type SessionID string

// Key is the name of a data item.
type Key string

// Value is the content of a data item. Test harnesses write unique
// values per key so that every read can be attributed to one write.
type Value int64

// InitTxn is the transaction that installed the initial state. It is
// never part of a session and precedes every other transaction.
const InitTxn TxnID = "⊥"

func (id TxnID) String() string {
	return string(id)
}

// OpKind distinguishes reads from writes.
type OpKind string

const (
	OpRead  OpKind = "read"
	OpWrite OpKind = "write"
)

// Operation is a single read or write performed by a transaction. For a
// write, Value is the written value; for a read, it is the observed one.
type Operation struct {
	Kind  OpKind `json:"kind"`
	Key   Key    `json:"key"`
	Value Value  `json:"value"`
}

// Read returns a read Operation observing v on k.
func Read(k Key, v Value) Operation {
	return Operation{Kind: OpRead, Key: k, Value: v}
}

// Write returns a write Operation installing v on k.
func Write(k Key, v Value) Operation {
	return Operation{Kind: OpWrite, Key: k, Value: v}
}

func (o Operation) String() string {
	switch o.Kind {
	case OpRead:
		return fmt.Sprintf("r(%s,%d)", o.Key, o.Value)
	case OpWrite:
		return fmt.Sprintf("w(%s,%d)", o.Key, o.Value)
	}
	return fmt.Sprintf("%s(%s,%d)", o.Kind, o.Key, o.Value)
}

// Transaction is a recorded transaction together with its outcome.
type Transaction struct {
	ID         TxnID       `json:"id"`
	Session    SessionID   `json:"session"`
	Committed  bool        `json:"committed"`
	Operations []Operation `json:"operations"`
}

// Session is the ordered stream of transactions issued by one client.
type Session struct {
	ID           SessionID `json:"id"`
	Transactions []TxnID   `json:"transactions"`
}

// History is a completed test run. It must not be modified once it has
// been handed to a verifier; checks read it concurrently without locks.
type History struct {
	ID           string        `json:"id,omitempty" hash:"ignore"`
	Sessions     []Session     `json:"sessions"`
	Transactions []Transaction `json:"transactions"`
	// Initial declares the value every key holds before the first
	// transaction.
	Initial map[Key]Value `json:"initial,omitempty"`
	// DefaultInitial, when set, is the initial value of every key
	// missing from Initial.
	DefaultInitial *Value `json:"defaultInitial,omitempty"`
}

// InitialValue returns the declared initial value of k, if any.
func (h *History) InitialValue(k Key) (Value, bool) {
	if v, ok := h.Initial[k]; ok {
		return v, true
	}
	if h.DefaultInitial != nil {
		return *h.DefaultInitial, true
	}
	return 0, false
}

// Fingerprint returns a structural hash of the history content. The ID
// does not contribute.
func (h *History) Fingerprint() (uint64, error) {
	return hashstructure.Hash(h, nil)
}

// Name returns the ID of the history, or a name derived from its
// fingerprint when no ID was recorded.
func (h *History) Name() string {
	if h.ID != "" {
		return h.ID
	}
	fp, err := h.Fingerprint()
	if err != nil {
		return "h-unknown"
	}
	return fmt.Sprintf("h-%016x", fp)
}

// Builder assembles a History in session order. It is meant for history
// producers and tests; it performs no validation, see NewIndex.
type Builder struct {
	h        History
	sessions map[SessionID]int
}

// NewBuilder returns a Builder for a history with the given ID.
func NewBuilder(id string) *Builder {
	return &Builder{
		h:        History{ID: id},
		sessions: make(map[SessionID]int),
	}
}

// Initial declares the initial value of k.
func (b *Builder) Initial(k Key, v Value) *Builder {
	if b.h.Initial == nil {
		b.h.Initial = make(map[Key]Value)
	}
	b.h.Initial[k] = v
	return b
}

// DefaultInitial declares the initial value of every key without an
// explicit initial value.
func (b *Builder) DefaultInitial(v Value) *Builder {
	b.h.DefaultInitial = &v
	return b
}

// Commit appends a committed transaction to the end of session s.
func (b *Builder) Commit(s SessionID, id TxnID, ops ...Operation) *Builder {
	return b.add(s, id, true, ops)
}

// Abort appends an aborted transaction to the end of session s.
func (b *Builder) Abort(s SessionID, id TxnID, ops ...Operation) *Builder {
	return b.add(s, id, false, ops)
}

func (b *Builder) add(s SessionID, id TxnID, committed bool, ops []Operation) *Builder {
	i, ok := b.sessions[s]
	if !ok {
		i = len(b.h.Sessions)
		b.sessions[s] = i
		b.h.Sessions = append(b.h.Sessions, Session{ID: s})
	}
	b.h.Sessions[i].Transactions = append(b.h.Sessions[i].Transactions, id)
	b.h.Transactions = append(b.h.Transactions, Transaction{
		ID:         id,
		Session:    s,
		Committed:  committed,
		Operations: append([]Operation(nil), ops...),
	})
	return b
}

// History returns the assembled history. The Builder must not be used
// afterwards.
func (b *Builder) History() *History {
	h := b.h
	return &h
}
