package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldersyn/bomrev/internal/bom"
)

func TestApplyRebase_CleanReplay(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	line, _ := v1.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, line.ID, pcs("8")))
	require.Equal(t, bom.StateNeedsRebase, refresh(t, e, order.ID).State)

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateInProgress, rebased.State)
	assert.Empty(t, records(t, e, order.ID))

	requireLineValue(t, candidateOf(t, e, rebased), leg, pcs("8"))
}

func TestApplyRebase_ReplaysInCaptureOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg, top, brace := bom.NewID(), bom.NewID(), bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"), spec(top, "1"))
	order := startedOrder(t, e, product)

	legLine, _ := v1.FindLine(leg)
	topLine, _ := v1.FindLine(top)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, legLine.ID, pcs("8")))
	_, err := e.InsertLine(ctx, v1.ID, brace, pcs("2"))
	require.NoError(t, err)
	require.NoError(t, e.DeleteLine(ctx, v1.ID, topLine.ID))

	recs := records(t, e, order.ID)
	require.Len(t, recs, 3)
	for i := 1; i < len(recs); i++ {
		assert.Less(t, recs[i-1].Seq, recs[i].Seq)
	}

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateInProgress, rebased.State)

	cand := candidateOf(t, e, rebased)
	requireLineValue(t, cand, leg, pcs("8"))
	requireLineValue(t, cand, brace, pcs("2"))
	_, ok := cand.FindLine(top)
	assert.False(t, ok, "removed line must not survive the rebase")
}

func TestApplyRebase_Divergence(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	// Candidate and base edit the same line to different values.
	cand := candidateOf(t, e, order)
	candLine, _ := cand.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, cand.ID, candLine.ID, pcs("10")))

	baseLine, _ := v1.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, baseLine.ID, pcs("8")))

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateConflict, rebased.State)

	recs := records(t, e, order.ID)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Conflicting)

	// The candidate is untouched by a divergent record.
	requireLineValue(t, candidateOf(t, e, rebased), leg, pcs("10"))
}

func TestApplyRebase_Idempotent(t *testing.T) {
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

	first, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	second, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, bom.StateConflict, second.State)
	require.Len(t, records(t, e, order.ID), 1)
	requireLineValue(t, candidateOf(t, e, second), leg, pcs("10"))
}

func TestApplyRebase_MixedCleanAndDivergent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg, top := bom.NewID(), bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"), spec(top, "1"))
	order := startedOrder(t, e, product)

	cand := candidateOf(t, e, order)
	candLeg, _ := cand.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, cand.ID, candLeg.ID, pcs("10")))

	baseLeg, _ := v1.FindLine(leg)
	baseTop, _ := v1.FindLine(top)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, baseLeg.ID, pcs("8")))
	require.NoError(t, e.UpdateLine(ctx, v1.ID, baseTop.ID, pcs("2")))

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateConflict, rebased.State)

	// Clean records apply and are consumed; the divergent one remains.
	recs := records(t, e, order.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, leg, recs[0].Component)

	candAfter := candidateOf(t, e, rebased)
	requireLineValue(t, candAfter, top, pcs("2"))
	requireLineValue(t, candAfter, leg, pcs("10"))
}

func TestApplyRebase_CandidateAlreadyMatchesNext(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	// Both sides independently settle on 8. Capture sees the candidate
	// at 4 when the base moves, so a record exists; the later candidate
	// edit makes it redundant and the rebase consumes it without conflict.
	baseLine, _ := v1.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, v1.ID, baseLine.ID, pcs("8")))
	require.Len(t, records(t, e, order.ID), 1)

	cand := candidateOf(t, e, order)
	candLine, _ := cand.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, cand.ID, candLine.ID, pcs("8")))

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateInProgress, rebased.State)
	assert.Empty(t, records(t, e, order.ID))
	requireLineValue(t, candidateOf(t, e, rebased), leg, pcs("8"))
}

func TestResolveConflict_BaseWins(t *testing.T) {
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

	_, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)

	resolved, err := e.ResolveConflict(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bom.StateInProgress, resolved.State)
	assert.Empty(t, records(t, e, order.ID))

	// The base-side value overwrote the candidate's.
	requireLineValue(t, candidateOf(t, e, resolved), leg, pcs("8"))
}

func TestResolveConflict_OnlyFromConflict(t *testing.T) {
	e := newTestEngine(t)
	product, _ := seedProduct(t, e, spec(bom.NewID(), "4"))
	order := startedOrder(t, e, product)

	_, err := e.ResolveConflict(context.Background(), order.ID)
	assert.True(t, IsInvalidState(err))
}

func TestResolveConflict_RemoveWins(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	leg := bom.NewID()
	product, v1 := seedProduct(t, e, spec(leg, "4"))
	order := startedOrder(t, e, product)

	// Base removes the line the candidate just re-valued.
	cand := candidateOf(t, e, order)
	candLine, _ := cand.FindLine(leg)
	require.NoError(t, e.UpdateLine(ctx, cand.ID, candLine.ID, pcs("10")))
	baseLine, _ := v1.FindLine(leg)
	require.NoError(t, e.DeleteLine(ctx, v1.ID, baseLine.ID))

	rebased, err := e.ApplyRebase(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, bom.StateConflict, rebased.State)

	resolved, err := e.ResolveConflict(ctx, order.ID)
	require.NoError(t, err)

	candAfter := candidateOf(t, e, resolved)
	_, ok := candAfter.FindLine(leg)
	assert.False(t, ok, "base-side removal must win")
}
