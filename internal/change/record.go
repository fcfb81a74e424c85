// Package change defines the tagged-variant change records that make up a
// topic's event log, and the scope/result vocabulary used to apply them.
package change

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Type discriminates the kind of mutation a Record describes.
type Type string

const (
	TypePut           Type = "PUT"
	TypeReplace       Type = "REPLACE"
	TypeInsert        Type = "INSERT"
	TypeMoveBefore    Type = "MOVE_BEFORE"
	TypeMoveAfter     Type = "MOVE_AFTER"
	TypeListSet       Type = "LIST_SET"
	TypeMapTimeout    Type = "MAP_TIMEOUT"
	TypeListTimeout   Type = "LIST_TIMEOUT"
	TypeNodeJoin      Type = "NODE_JOIN"
	TypeNodeActivate  Type = "NODE_ACTIVATE"
	TypeNodeDeactivate Type = "NODE_DEACTIVATE"
)

// Scope controls the visibility/lifetime of a map or list entry.
type Scope string

const (
	// ScopeTopic entries persist until explicitly removed.
	ScopeTopic Scope = "TOPIC"
	// ScopeConnection entries are auto-removed when their owning node
	// leaves or deactivates.
	ScopeConnection Scope = "CONNECTION"
)

// Condition asserts that RightKey is the successor of LeftKey in a list,
// where a nil key represents the head/tail boundary. Used by INSERT and
// MOVE_BEFORE/MOVE_AFTER to make insertBetween/moveBetween atomic: the
// whole change is rejected if the asserted adjacency no longer holds at
// apply time.
type Condition struct {
	LeftKey  *uuid.UUID `json:"leftKey,omitempty"`
	RightKey *uuid.UUID `json:"rightKey,omitempty"`
}

// Record is the tagged-variant document persisted to a topic's event log.
// Only the fields relevant to Type are populated; this mirrors how the
// rest of this codebase represents polymorphic JSON documents (a single
// struct with omitempty fields) rather than an interface hierarchy.
type Record struct {
	Type Type `json:"type"`

	// Name is the target map or list.
	Name string `json:"name,omitempty"`

	// MapKey addresses an entry in a named map (PUT/REPLACE); map keys are
	// arbitrary caller-chosen strings, e.g. "name" or "counter".
	MapKey string `json:"mapKey,omitempty"`

	// ListKey addresses an entry in a named list (LIST_SET); list entries
	// are addressed by the UUID assigned when they were inserted.
	ListKey *uuid.UUID `json:"listKey,omitempty"`

	// PUT / REPLACE / LIST_SET.
	Value         json.RawMessage `json:"value,omitempty"`
	ExpectedID    *uuid.UUID      `json:"expectedId,omitempty"`
	ExpectedValue json.RawMessage `json:"expectedValue,omitempty"`
	ScopeOwner    *uuid.UUID      `json:"scopeOwner,omitempty"`

	// INSERT.
	ReferenceKey *uuid.UUID      `json:"referenceKey,omitempty"`
	Before       bool            `json:"before,omitempty"`
	Item         json.RawMessage `json:"item,omitempty"`

	// MOVE_BEFORE / MOVE_AFTER.
	KeyToMove *uuid.UUID `json:"keyToMove,omitempty"`

	// Conditions is checked by both INSERT and MOVE_BEFORE/MOVE_AFTER: an
	// insertBetween/moveBetween is really insertAfter/moveAfter plus an
	// adjacency assertion on the surrounding keys.
	Conditions []Condition `json:"conditions,omitempty"`

	// MAP_TIMEOUT / LIST_TIMEOUT: duration in milliseconds, nil clears.
	TimeoutMs *int64 `json:"timeoutMs,omitempty"`

	// NODE_JOIN / NODE_ACTIVATE / NODE_DEACTIVATE.
	NodeID *uuid.UUID `json:"nodeId,omitempty"`
}

// IsNullValue reports whether Value represents the JSON null sentinel,
// i.e. a request to remove the entry.
func (r Record) IsNullValue() bool {
	return len(r.Value) == 0 || string(r.Value) == "null"
}

// Encode serializes the record for the event log.
func (r Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a record previously produced by Encode.
func Decode(b []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(b, &r)
	return r, err
}

// Result is the outcome of applying a mutating change.
type Result int

const (
	Accepted Result = iota
	Rejected
)

// String implements fmt.Stringer.
func (r Result) String() string {
	if r == Accepted {
		return "ACCEPTED"
	}
	return "REJECTED"
}

// MapChange describes an observed mutation to a named map, delivered to
// map subscribers.
type MapChange struct {
	Name       string
	Key        string
	OldValue   json.RawMessage
	NewValue   json.RawMessage
	ScopeOwner *uuid.UUID
}

// ListChange describes an observed mutation to a named list, delivered to
// list subscribers.
type ListChange struct {
	Name       string
	Key        uuid.UUID
	OldValue   json.RawMessage
	NewValue   json.RawMessage
	ScopeOwner *uuid.UUID
}

// Details is the sum type of observable change details: exactly one of
// Map or List is non-nil.
type Details struct {
	Map  *MapChange
	List *ListChange
}
