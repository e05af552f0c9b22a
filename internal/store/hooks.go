package store

import (
	"context"

	"github.com/aldersyn/bomrev/internal/bom"
)

// LineChange is the before/after snapshot of one component-line mutation,
// passed to the registered observer.
//
// Before == nil means the line was inserted; After == nil means it was
// deleted; both set means an update. Before and After are never both nil.
type LineChange struct {
	VersionID bom.VersionID
	LineID    bom.LineID
	Component bom.ProductID
	Before    *bom.LineValue
	After     *bom.LineValue
}

// LineObserver is invoked synchronously on every component-line mutation,
// in mutation order. Diff capture implements this to turn base-version
// edits into pending change records.
//
// An observer error aborts the mutation's caller but the row write itself
// has already committed; callers surface the error rather than retrying.
type LineObserver interface {
	LineChanged(ctx context.Context, change LineChange) error
}

// SetLineObserver registers the observer. Only one observer is supported;
// registering replaces any previous one. Pass nil to detach.
func (s *Store) SetLineObserver(obs LineObserver) {
	s.observer = obs
}

// notifyLine dispatches a change to the observer, if any.
func (s *Store) notifyLine(ctx context.Context, change LineChange) error {
	if s.observer == nil {
		return nil
	}
	return s.observer.LineChanged(ctx, change)
}
