package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aldersyn/bomrev/internal/bom"
)

// openTestStore returns a fresh in-memory store, closed on test cleanup.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testVersion builds an unsaved version with one line per (component, qty).
func testVersion(product bom.ProductID, active bool, quantities map[bom.ProductID]string) bom.Version {
	v := bom.Version{
		ID:       bom.NewID(),
		Product:  product,
		Revision: 1,
		Active:   active,
	}
	for component, qty := range quantities {
		v.Lines = append(v.Lines, bom.ComponentLine{
			ID:        bom.NewID(),
			VersionID: v.ID,
			Component: component,
			Value:     bom.LineValue{Quantity: bom.MustQuantity(qty), Unit: "pcs"},
		})
	}
	return v
}

// recordingObserver captures observer dispatches for assertions.
type recordingObserver struct {
	changes []LineChange
	err     error
}

func (o *recordingObserver) LineChanged(_ context.Context, change LineChange) error {
	o.changes = append(o.changes, change)
	return o.err
}
