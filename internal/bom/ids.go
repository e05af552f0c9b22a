package bom

import "github.com/google/uuid"

// ProductID identifies a manufactured or component product.
// Products are external to this engine; the ID is opaque.
type ProductID = uuid.UUID

// VersionID identifies one BOM version.
type VersionID = uuid.UUID

// LineID identifies one component line within a version.
//
// Lines carry their own identity (not just the component product they
// reference) so that a version legitimately holding two lines for the
// same component stays unambiguous during rebase matching.
type LineID = uuid.UUID

// OrderID identifies a change order.
type OrderID = uuid.UUID

// RecordID identifies a change record.
type RecordID = uuid.UUID

// NewID returns a fresh random identifier.
func NewID() uuid.UUID {
	return uuid.New()
}
