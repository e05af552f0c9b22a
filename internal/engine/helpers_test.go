package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/store"
)

// newTestEngine wires an engine over a fresh in-memory store.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	e, err := New(context.Background(), st)
	require.NoError(t, err)
	return e
}

func pcs(quantity string) bom.LineValue {
	return bom.LineValue{Quantity: bom.MustQuantity(quantity), Unit: "pcs"}
}

func spec(component bom.ProductID, quantity string) bom.LineSpec {
	return bom.LineSpec{Component: component, Value: pcs(quantity)}
}

// seedProduct promotes an initial BOM and returns the product with its
// active revision 1 version.
func seedProduct(t *testing.T, e *Engine, specs ...bom.LineSpec) (bom.ProductID, bom.Version) {
	t.Helper()
	product := bom.NewID()
	v, err := e.PromoteVersion(context.Background(), product, specs)
	require.NoError(t, err)
	return product, v
}

// startedOrder creates an order and starts its revision.
func startedOrder(t *testing.T, e *Engine, product bom.ProductID) bom.ChangeOrder {
	t.Helper()
	ctx := context.Background()
	order, err := e.CreateOrder(ctx, product)
	require.NoError(t, err)
	order, err = e.StartRevision(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, order.CandidateVersion)
	return order
}

// refresh re-reads an order from the store.
func refresh(t *testing.T, e *Engine, orderID bom.OrderID) bom.ChangeOrder {
	t.Helper()
	order, err := e.Order(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

// records returns the order's pending records in replay order.
func records(t *testing.T, e *Engine, orderID bom.OrderID) []bom.ChangeRecord {
	t.Helper()
	recs, err := e.store.RecordsForOrder(context.Background(), orderID)
	require.NoError(t, err)
	return recs
}

// candidateOf loads the order's candidate version.
func candidateOf(t *testing.T, e *Engine, order bom.ChangeOrder) bom.Version {
	t.Helper()
	require.NotNil(t, order.CandidateVersion)
	v, err := e.Version(context.Background(), *order.CandidateVersion)
	require.NoError(t, err)
	return v
}

// requireLineValue asserts a version holds exactly one line for the
// component with the given value.
func requireLineValue(t *testing.T, v bom.Version, component bom.ProductID, want bom.LineValue) {
	t.Helper()
	var found []bom.ComponentLine
	for _, l := range v.Lines {
		if l.Component == component {
			found = append(found, l)
		}
	}
	require.Len(t, found, 1)
	require.True(t, found[0].Value.Equal(want),
		"line value = %s, want %s", found[0].Value, want)
}
