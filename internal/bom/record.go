package bom

import "fmt"

// ChangeKind classifies what happened to a base line since divergence.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeRemove ChangeKind = "remove"
)

// Valid reports whether k is one of the defined kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeAdd, ChangeUpdate, ChangeRemove:
		return true
	}
	return false
}

// ParseChangeKind converts stored text back into a ChangeKind.
func ParseChangeKind(s string) (ChangeKind, error) {
	k := ChangeKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown change kind %q", s)
	}
	return k, nil
}

// ChangeRecord is one pending delta an order must eventually replay onto
// its candidate version, for one component product.
//
// Previous is the value at divergence time and is frozen at first capture;
// Next is overwritten by later captures for the same component (coalescing).
// Previous == nil means the line did not exist at divergence (an Add);
// Next == nil means the line was removed.
//
// Inherited records ("previous change records") carry the diff a sibling
// order just applied, seeded by the cascade rather than by live base edits.
// They are consumed exactly once by the next rebase.
type ChangeRecord struct {
	ID          RecordID   `json:"id"`
	OrderID     OrderID    `json:"order_id"`
	Component   ProductID  `json:"component"`
	LineID      *LineID    `json:"line_id,omitempty"`
	Kind        ChangeKind `json:"kind"`
	Previous    *LineValue `json:"previous,omitempty"`
	Next        *LineValue `json:"next,omitempty"`
	Inherited   bool       `json:"inherited"`
	Conflicting bool       `json:"conflicting"`
	Seq         int64      `json:"seq"`
}

// NetZero reports whether the record no longer describes any change:
// the value it would apply equals the value it diverged from.
func (r ChangeRecord) NetZero() bool {
	return EqualPtr(r.Previous, r.Next)
}

// Clone returns an independent copy of the record.
func (r ChangeRecord) Clone() ChangeRecord {
	c := r
	c.Previous = ClonePtr(r.Previous)
	c.Next = ClonePtr(r.Next)
	if r.LineID != nil {
		id := *r.LineID
		c.LineID = &id
	}
	return c
}
