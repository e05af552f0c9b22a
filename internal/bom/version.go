package bom

// ComponentLine is one ingredient entry within a version: the component
// product, how much of it, and an optional routing operation tag.
// A line belongs to exactly one version.
type ComponentLine struct {
	ID        LineID    `json:"id"`
	VersionID VersionID `json:"version_id"`
	Component ProductID `json:"component"`
	Value     LineValue `json:"value"`
}

// Clone returns an independent copy of the line.
func (l ComponentLine) Clone() ComponentLine {
	return ComponentLine{
		ID:        l.ID,
		VersionID: l.VersionID,
		Component: l.Component,
		Value:     l.Value.Clone(),
	}
}

// LineSpec describes a component line without identity, used when
// supplying a full BOM to create or promote in one shot. Line identities
// are minted at persistence time.
type LineSpec struct {
	Component ProductID `json:"component"`
	Value     LineValue `json:"value"`
}

// Version is one revision of a product's bill of materials.
//
// Versions form a singly linked per-product history chain through
// PreviousVersion. At most one version per product is active at any
// instant; superseded versions are archived, never deleted, because
// in-flight change orders may still reference them as base.
type Version struct {
	ID              VersionID       `json:"id"`
	Product         ProductID       `json:"product"`
	Revision        int64           `json:"revision"`
	Active          bool            `json:"active"`
	PreviousVersion *VersionID      `json:"previous_version,omitempty"`
	Lines           []ComponentLine `json:"lines"`
}

// FindLine returns the line for a component product, if present.
// When the version holds several lines for the same component the first
// in line order wins; callers needing an exact line match by identity
// should use FindLineByID.
func (v *Version) FindLine(component ProductID) (ComponentLine, bool) {
	for _, l := range v.Lines {
		if l.Component == component {
			return l, true
		}
	}
	return ComponentLine{}, false
}

// FindLineByID returns the line with the given identity, if present.
func (v *Version) FindLineByID(id LineID) (ComponentLine, bool) {
	for _, l := range v.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return ComponentLine{}, false
}

// LineValues returns the version's lines keyed by component product.
// Later duplicates of a component are ignored (see FindLine).
func (v *Version) LineValues() map[ProductID]LineValue {
	out := make(map[ProductID]LineValue, len(v.Lines))
	for _, l := range v.Lines {
		if _, ok := out[l.Component]; !ok {
			out[l.Component] = l.Value.Clone()
		}
	}
	return out
}
