package engine

import "github.com/aldersyn/bomrev/internal/bom"

// ActivationSource records which flow made a version authoritative.
type ActivationSource string

const (
	// SourceApply: a change order applied its candidate version.
	SourceApply ActivationSource = "apply"

	// SourcePromote: a version was authored and activated directly,
	// outside the change-order flow.
	SourcePromote ActivationSource = "promote"
)

// VersionActivated is the observable event emitted whenever a version
// becomes authoritative. The cascade propagator consumes it as a value
// rather than running as a hidden side effect inside apply, and the
// store's activation log makes it durable for audit.
type VersionActivated struct {
	Product bom.ProductID
	Old     *bom.VersionID
	New     bom.VersionID
	Source  ActivationSource
	Seq     int64
}
