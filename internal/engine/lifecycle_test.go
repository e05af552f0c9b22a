package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/store"
)

func TestCreateOrder(t *testing.T) {
	e := newTestEngine(t)
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))

	order, err := e.CreateOrder(context.Background(), product)
	require.NoError(t, err)

	assert.Equal(t, bom.StateDraft, order.State)
	assert.Equal(t, v1.ID, order.BaseVersion)
	assert.Nil(t, order.CandidateVersion)
}

func TestCreateOrder_NoActiveVersion(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateOrder(context.Background(), bom.NewID())
	assert.True(t, IsNotFound(err))
}

func TestStartRevision_ClonesBase(t *testing.T) {
	e := newTestEngine(t)
	leg, top := bom.NewID(), bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"), spec(top, "1"))

	order := startedOrder(t, e, product)
	assert.Equal(t, bom.StateInProgress, order.State)

	cand := candidateOf(t, e, order)
	assert.Equal(t, v1.Revision+1, cand.Revision)
	assert.False(t, cand.Active)
	require.NotNil(t, cand.PreviousVersion)
	assert.Equal(t, v1.ID, *cand.PreviousVersion)

	// Clone preserves line identity and values.
	require.Len(t, cand.Lines, 2)
	for i, l := range cand.Lines {
		assert.Equal(t, v1.Lines[i].ID, l.ID)
		assert.Equal(t, cand.ID, l.VersionID)
		assert.True(t, l.Value.Equal(v1.Lines[i].Value))
	}
}

func TestStartRevision_OnlyFromDraft(t *testing.T) {
	e := newTestEngine(t)
	product, _ := seedProduct(t, e, spec(bom.NewID(), "4"))
	order := startedOrder(t, e, product)

	_, err := e.StartRevision(context.Background(), order.ID)
	assert.True(t, IsInvalidState(err))
}

func TestApply_ActivatesCandidate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	cand := candidateOf(t, e, order)
	line, ok := cand.FindLine(leg)
	require.True(t, ok)
	require.NoError(t, e.UpdateLine(ctx, cand.ID, line.ID, pcs("6")))

	applied, err := e.Apply(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateApplied, applied.State)

	active, err := e.ActiveVersion(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, cand.ID, active.ID)
	requireLineValue(t, active, leg, pcs("6"))

	// The superseded version is archived, not deleted.
	old, err := e.Version(ctx, v1.ID)
	require.NoError(t, err)
	assert.False(t, old.Active)

	// Activation is durably logged.
	acts, err := e.Activations(ctx, product)
	require.NoError(t, err)
	require.Len(t, acts, 2) // promote + apply
	assert.Equal(t, string(SourceApply), acts[1].Source)
	require.NotNil(t, acts[1].OldVersion)
	assert.Equal(t, v1.ID, *acts[1].OldVersion)
}

func TestApply_RejectedWhilePendingRecords(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	// Base edit while the order is open leaves a pending record.
	line, ok := v1.FindLine(leg)
	require.True(t, ok)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, line.ID, pcs("8")))

	_, err := e.Apply(ctx, order.ID)
	require.True(t, IsPendingRebase(err))

	var serr *StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Pending)
}

func TestApply_PendingFromConflict(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	cand := candidateOf(t, e, order)
	candLine, _ := cand.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, cand.ID, candLine.ID, pcs("10")))
	baseLine, _ := v1.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, baseLine.ID, pcs("8")))

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, bom.StateConflict, rebased.State)

	// A conflicted order is blocked by its unresolved records, not by its
	// state: the error names the count of records still to reconcile.
	_, err = e.Apply(ctx, order.ID)
	require.True(t, IsPendingRebase(err))

	var serr *StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Pending)
}

func TestApply_InvalidFromDraft(t *testing.T) {
	e := newTestEngine(t)
	product, _ := seedProduct(t, e, spec(bom.NewID(), "4"))

	order, err := e.CreateOrder(context.Background(), product)
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), order.ID)
	assert.True(t, IsInvalidState(err))
}

func TestCancel_DropsCandidateAndRecords(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)
	candID := *order.CandidateVersion

	line, _ := v1.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, line.ID, pcs("8")))
	require.Len(t, records(t, e, order.ID), 1)

	cancelled, err := e.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateCancelled, cancelled.State)
	assert.Nil(t, cancelled.CandidateVersion)

	assert.Empty(t, records(t, e, order.ID))
	_, err = e.Version(ctx, candID)
	assert.True(t, IsNotFound(err))

	// Terminal states admit nothing further.
	_, err = e.Cancel(ctx, order.ID)
	assert.True(t, IsInvalidState(err))
	_, err = e.ApplyRebase(ctx, order.ID)
	assert.True(t, IsInvalidState(err))
}

func TestDeleteDraft(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	product, _ := seedProduct(t, e, spec(bom.NewID(), "4"))

	order, err := e.CreateOrder(ctx, product)
	require.NoError(t, err)
	require.NoError(t, e.DeleteDraft(ctx, order.ID))

	_, err = e.Order(ctx, order.ID)
	assert.True(t, IsNotFound(err))
}

func TestDeleteDraft_RejectedPastDraft(t *testing.T) {
	e := newTestEngine(t)
	product, _ := seedProduct(t, e, spec(bom.NewID(), "4"))
	order := startedOrder(t, e, product)

	err := e.DeleteDraft(context.Background(), order.ID)
	assert.True(t, IsInvalidState(err))
}

func TestClockResumesFromPersistedRecords(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	e1, err := New(ctx, st)
	require.NoError(t, err)

	leg := bom.NewID()
	product, v1 := seedProduct(t, e1, spec(leg, "4"))
	order, err := e1.CreateOrder(ctx, product)
	require.NoError(t, err)
	order, err = e1.StartRevision(ctx, order.ID)
	require.NoError(t, err)
	_ = order

	line, _ := v1.FindLine(leg)
	require.NoError(t, e1.UpdateLine(ctx, v1.ID, line.ID, pcs("8")))
	before := e1.Clock().Current()
	require.Positive(t, before)

	// A second engine over the same store must not reuse seq numbers.
	e2, err := New(ctx, st)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, e2.Clock().Current(), before)
}
