package bom

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/unicode/norm"
)

// Quantity is an exact non-negative decimal amount of a component.
//
// Decimals (not floats) keep value-identity comparison deterministic:
// divergence detection hinges on exact equality, and 0.1+0.2 style float
// drift would manufacture phantom conflicts.
type Quantity struct {
	d apd.Decimal
}

// ParseQuantity parses a decimal string into a Quantity.
// Negative values are rejected.
func ParseQuantity(s string) (Quantity, error) {
	var q Quantity
	if _, _, err := q.d.SetString(strings.TrimSpace(s)); err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	if q.d.Negative {
		return Quantity{}, fmt.Errorf("parse quantity %q: must be non-negative", s)
	}
	return q, nil
}

// MustQuantity parses a decimal string and panics on error.
// For tests and static fixtures only.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// QuantityFromInt returns a Quantity for a non-negative integer count.
func QuantityFromInt(n int64) Quantity {
	var q Quantity
	q.d.SetInt64(n)
	return q
}

// Equal reports numeric equality, ignoring representation ("3" == "3.0").
func (q Quantity) Equal(other Quantity) bool {
	return q.d.Cmp(&other.d) == 0
}

// IsZero reports whether the quantity is exactly zero.
func (q Quantity) IsZero() bool {
	return q.d.IsZero()
}

// String returns the canonical decimal text of the quantity.
func (q Quantity) String() string {
	return q.d.Text('f')
}

// MarshalJSON encodes the quantity as a decimal string, never a float.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// UnmarshalJSON decodes a quantity from a decimal string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal quantity: %w", err)
	}
	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// LineValue is the comparable payload of a component line: how much of
// the component is consumed, in which unit, at which (opaque) routing
// operation. Divergence detection compares whole LineValues - any single
// differing field counts as divergence.
type LineValue struct {
	Quantity  Quantity `json:"quantity"`
	Unit      string   `json:"unit"`
	Operation string   `json:"operation,omitempty"`
}

// Equal reports value identity between two line values.
// Unit and operation strings are NFC-normalized before comparison so that
// visually identical text entered through different editors compares equal.
func (v LineValue) Equal(other LineValue) bool {
	return v.Quantity.Equal(other.Quantity) &&
		norm.NFC.String(v.Unit) == norm.NFC.String(other.Unit) &&
		norm.NFC.String(v.Operation) == norm.NFC.String(other.Operation)
}

// EqualPtr compares two optional line values; two nils are equal.
func EqualPtr(a, b *LineValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Clone returns an independent copy of the value.
func (v LineValue) Clone() LineValue {
	return LineValue{Quantity: v.Quantity, Unit: v.Unit, Operation: v.Operation}
}

// ClonePtr clones an optional value; nil stays nil.
func ClonePtr(v *LineValue) *LineValue {
	if v == nil {
		return nil
	}
	c := v.Clone()
	return &c
}

// String renders the value for logs and CLI output.
func (v LineValue) String() string {
	if v.Operation == "" {
		return fmt.Sprintf("%s %s", v.Quantity.String(), v.Unit)
	}
	return fmt.Sprintf("%s %s @%s", v.Quantity.String(), v.Unit, v.Operation)
}
