package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aldersyn/bomrev/internal/bom"
)

// ApplyRebase replays the order's pending change records onto its
// candidate version, in seq order, and reports the resulting order.
//
// Each record is checked against the candidate first. If the candidate
// still holds the record's previous value the change replays cleanly and
// the record is consumed; if the candidate already holds the next value
// the record is consumed with no write. Anything else is a divergence:
// the record stays, flagged, and the order lands in Conflict.
//
// Rebasing with nothing pending is a no-op, so repeated rebases settle.
func (e *Engine) ApplyRebase(ctx context.Context, orderID bom.OrderID) (bom.ChangeOrder, error) {
	order, err := e.Order(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	switch order.State {
	case bom.StateInProgress, bom.StateNeedsRebase, bom.StateConflict:
	default:
		return bom.ChangeOrder{}, newInvalidState("rebase", orderID, order.State)
	}
	if order.CandidateVersion == nil {
		return bom.ChangeOrder{}, newInvalidState("rebase", orderID, order.State)
	}

	records, err := e.store.RecordsForOrder(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("rebase: load records: %w", err)
	}
	if len(records) == 0 {
		return e.settleOrder(ctx, order, bom.StateInProgress)
	}

	conflicts := 0
	for _, rec := range records {
		divergent, err := e.replayRecord(ctx, *order.CandidateVersion, rec)
		if err != nil {
			return bom.ChangeOrder{}, err
		}
		if divergent {
			conflicts++
		}
	}

	next := bom.StateInProgress
	if conflicts > 0 {
		next = bom.StateConflict
	}
	slog.Info("rebase finished",
		"order", orderID,
		"replayed", len(records)-conflicts,
		"conflicts", conflicts,
		"state", next)
	return e.settleOrder(ctx, order, next)
}

// replayRecord applies one record onto the candidate, reporting whether
// it diverged. Applied records are consumed; divergent ones are kept and
// flagged for resolution.
func (e *Engine) replayRecord(ctx context.Context, candidateID bom.VersionID, rec bom.ChangeRecord) (bool, error) {
	cand, err := e.store.GetVersion(ctx, candidateID)
	if err != nil {
		return false, fmt.Errorf("rebase: candidate version: %w", err)
	}

	line, matched := matchLine(&cand, rec)

	// An addition whose line the candidate never saw cannot diverge;
	// duplicate component lines are permitted, so it inserts alongside
	// any independent addition of the same component.
	if rec.Kind == bom.ChangeAdd && !matched {
		if err := e.applyRecord(ctx, candidateID, rec); err != nil {
			return false, err
		}
		return false, e.consumeRecord(ctx, rec)
	}

	var current *bom.LineValue
	if matched {
		v := line.Value.Clone()
		current = &v
	}

	switch {
	case bom.EqualPtr(current, rec.Previous):
		if err := e.applyRecord(ctx, candidateID, rec); err != nil {
			return false, err
		}
		return false, e.consumeRecord(ctx, rec)
	case bom.EqualPtr(current, rec.Next):
		// Candidate independently arrived at the same value.
		return false, e.consumeRecord(ctx, rec)
	default:
		if !rec.Conflicting {
			rec.Conflicting = true
			if err := e.store.PutRecord(ctx, rec); err != nil {
				return false, fmt.Errorf("rebase: flag conflict: %w", err)
			}
		}
		slog.Debug("rebase divergence",
			"order", rec.OrderID,
			"component", rec.Component,
			"kind", rec.Kind)
		return true, nil
	}
}

// matchLine finds the candidate line a record refers to: by line identity
// when recorded, falling back to the component lookup.
func matchLine(cand *bom.Version, rec bom.ChangeRecord) (bom.ComponentLine, bool) {
	if rec.LineID != nil {
		if l, ok := cand.FindLineByID(*rec.LineID); ok {
			return l, true
		}
	}
	if rec.Kind == bom.ChangeAdd {
		return bom.ComponentLine{}, false
	}
	return cand.FindLine(rec.Component)
}

// applyRecord writes the record's next value onto the candidate without
// triggering capture; candidate edits are never themselves captured.
func (e *Engine) applyRecord(ctx context.Context, candidateID bom.VersionID, rec bom.ChangeRecord) error {
	lineID := bom.NewID()
	if rec.LineID != nil {
		lineID = *rec.LineID
	}
	if err := e.store.ApplyLineQuiet(ctx, candidateID, lineID, rec.Component, rec.Next); err != nil {
		return fmt.Errorf("rebase: apply record: %w", err)
	}
	return nil
}

func (e *Engine) consumeRecord(ctx context.Context, rec bom.ChangeRecord) error {
	if err := e.store.DeleteRecord(ctx, rec.ID); err != nil {
		return fmt.Errorf("rebase: consume record: %w", err)
	}
	return nil
}

// ResolveConflict ends a Conflict by letting the base side win: every
// remaining record's next value is forced onto the candidate, the record
// ledger is cleared, and the order resumes InProgress. The user's
// conflicting candidate edits are overwritten, deterministically.
func (e *Engine) ResolveConflict(ctx context.Context, orderID bom.OrderID) (bom.ChangeOrder, error) {
	order, err := e.Order(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	if order.State != bom.StateConflict {
		return bom.ChangeOrder{}, newInvalidState("resolve", orderID, order.State)
	}
	if order.CandidateVersion == nil {
		return bom.ChangeOrder{}, newInvalidState("resolve", orderID, order.State)
	}

	records, err := e.store.RecordsForOrder(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("resolve: load records: %w", err)
	}
	for _, rec := range records {
		if err := e.applyRecord(ctx, *order.CandidateVersion, rec); err != nil {
			return bom.ChangeOrder{}, err
		}
	}
	if err := e.store.DeleteRecordsForOrder(ctx, orderID); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("resolve: clear records: %w", err)
	}

	slog.Info("conflict resolved",
		"order", orderID,
		"forced", len(records))
	return e.settleOrder(ctx, order, bom.StateInProgress)
}

func (e *Engine) settleOrder(ctx context.Context, order bom.ChangeOrder, state bom.OrderState) (bom.ChangeOrder, error) {
	if order.State == state {
		return order, nil
	}
	order.State = state
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("update order state: %w", err)
	}
	return order, nil
}
