package bom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStateValid(t *testing.T) {
	for _, s := range []OrderState{
		StateDraft, StateInProgress, StateNeedsRebase, StateConflict, StateApplied, StateCancelled,
	} {
		assert.True(t, s.Valid(), "state %s should be valid", s)
	}
	assert.False(t, OrderState("half-done").Valid())
}

func TestOrderStateTerminal(t *testing.T) {
	assert.True(t, StateApplied.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateDraft.Terminal())
	assert.False(t, StateInProgress.Terminal())
	assert.False(t, StateNeedsRebase.Terminal())
	assert.False(t, StateConflict.Terminal())
}

func TestOrderStateCanCapture(t *testing.T) {
	assert.False(t, StateDraft.CanCapture(), "draft orders have no candidate to reconcile yet")
	assert.True(t, StateInProgress.CanCapture())
	assert.True(t, StateNeedsRebase.CanCapture())
	assert.True(t, StateConflict.CanCapture())
	assert.False(t, StateApplied.CanCapture())
	assert.False(t, StateCancelled.CanCapture())
}

func TestOrderStateCanRebase(t *testing.T) {
	assert.True(t, StateNeedsRebase.CanRebase())
	assert.True(t, StateConflict.CanRebase())
	assert.False(t, StateInProgress.CanRebase())
	assert.False(t, StateDraft.CanRebase())
}

func TestOrderStateCanCancel(t *testing.T) {
	assert.True(t, StateDraft.CanCancel())
	assert.True(t, StateInProgress.CanCancel())
	assert.True(t, StateNeedsRebase.CanCancel())
	assert.True(t, StateConflict.CanCancel())
	assert.False(t, StateApplied.CanCancel())
	assert.False(t, StateCancelled.CanCancel())
}

func TestParseOrderState(t *testing.T) {
	s, err := ParseOrderState("needs_rebase")
	require.NoError(t, err)
	assert.Equal(t, StateNeedsRebase, s)

	_, err = ParseOrderState("bogus")
	require.Error(t, err)
}

func TestParseChangeKind(t *testing.T) {
	k, err := ParseChangeKind("remove")
	require.NoError(t, err)
	assert.Equal(t, ChangeRemove, k)

	_, err = ParseChangeKind("rename")
	require.Error(t, err)
}

func TestChangeRecordNetZero(t *testing.T) {
	v := LineValue{Quantity: MustQuantity("3"), Unit: "pcs"}
	w := LineValue{Quantity: MustQuantity("3.0"), Unit: "pcs"}

	assert.True(t, ChangeRecord{Previous: &v, Next: &w}.NetZero())
	assert.True(t, ChangeRecord{}.NetZero(), "absent before and after is no change")

	x := LineValue{Quantity: MustQuantity("8"), Unit: "pcs"}
	assert.False(t, ChangeRecord{Previous: &v, Next: &x}.NetZero())
	assert.False(t, ChangeRecord{Previous: nil, Next: &v}.NetZero())
}

func TestVersionFindLine(t *testing.T) {
	leg := NewID()
	seat := NewID()
	v := Version{
		ID:      NewID(),
		Product: NewID(),
		Lines: []ComponentLine{
			{ID: NewID(), Component: leg, Value: LineValue{Quantity: MustQuantity("4"), Unit: "pcs"}},
			{ID: NewID(), Component: seat, Value: LineValue{Quantity: MustQuantity("1"), Unit: "pcs"}},
		},
	}

	line, ok := v.FindLine(leg)
	require.True(t, ok)
	assert.Equal(t, leg, line.Component)

	_, ok = v.FindLine(NewID())
	assert.False(t, ok)

	byID, ok := v.FindLineByID(v.Lines[1].ID)
	require.True(t, ok)
	assert.Equal(t, seat, byID.Component)
}

func TestVersionLineValues_FirstDuplicateWins(t *testing.T) {
	leg := NewID()
	v := Version{
		Lines: []ComponentLine{
			{ID: NewID(), Component: leg, Value: LineValue{Quantity: MustQuantity("4"), Unit: "pcs"}},
			{ID: NewID(), Component: leg, Value: LineValue{Quantity: MustQuantity("2"), Unit: "pcs"}},
		},
	}
	values := v.LineValues()
	require.Len(t, values, 1)
	assert.True(t, values[leg].Quantity.Equal(MustQuantity("4")))
}
