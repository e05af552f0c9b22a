package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/store"
)

// LineChanged is the store's mutation hook: every component-line edit on
// a version lands here, synchronously, before the editing call returns.
//
// For each capturing order based on the edited version the change is
// folded into that order's pending record for the component. The
// previous-value snapshot is frozen at first capture; later edits only
// move the next value. A record whose next value the candidate already
// holds is dropped: there is nothing left to rebase.
func (e *Engine) LineChanged(ctx context.Context, ch store.LineChange) error {
	orders, err := e.store.OrdersByBase(ctx, ch.VersionID)
	if err != nil {
		return fmt.Errorf("capture: orders for base: %w", err)
	}

	for _, order := range orders {
		if !order.State.CanCapture() {
			continue
		}
		if err := e.captureForOrder(ctx, order, ch); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) captureForOrder(ctx context.Context, order bom.ChangeOrder, ch store.LineChange) error {
	rec, err := e.store.LiveRecord(ctx, order.ID, ch.Component)
	switch {
	case err == nil:
		// Coalesce: keep the frozen previous snapshot and the original
		// seq so replay order reflects first divergence, not last edit.
		rec.Next = bom.ClonePtr(ch.After)
		rec.Conflicting = false
	case errors.Is(err, store.ErrNotFound):
		lineID := ch.LineID
		rec = bom.ChangeRecord{
			ID:        bom.NewID(),
			OrderID:   order.ID,
			Component: ch.Component,
			LineID:    &lineID,
			Previous:  bom.ClonePtr(ch.Before),
			Next:      bom.ClonePtr(ch.After),
			Seq:       e.clock.Next(),
		}
	default:
		return fmt.Errorf("capture: live record: %w", err)
	}
	rec.Kind = kindFor(rec.Previous, rec.Next)

	moot := rec.NetZero()
	if !moot {
		current, err := e.candidateValue(ctx, order, ch.Component, rec.LineID)
		if err != nil {
			return err
		}
		moot = bom.EqualPtr(rec.Next, current)
	}

	if moot {
		if err := e.store.DeleteRecord(ctx, rec.ID); err != nil {
			return fmt.Errorf("capture: drop net-zero record: %w", err)
		}
		slog.Debug("change record cancelled out",
			"order", order.ID,
			"component", ch.Component)
	} else {
		if err := e.store.PutRecord(ctx, rec); err != nil {
			return fmt.Errorf("capture: put record: %w", err)
		}
		slog.Debug("change record captured",
			"order", order.ID,
			"component", ch.Component,
			"kind", rec.Kind,
			"seq", rec.Seq)
	}

	return e.reconcileOrderState(ctx, order)
}

// reconcileOrderState keeps the order's state in step with its record
// count after capture: records pending pulls InProgress to NeedsRebase,
// an emptied ledger releases NeedsRebase or Conflict back to InProgress.
func (e *Engine) reconcileOrderState(ctx context.Context, order bom.ChangeOrder) error {
	n, err := e.store.CountRecordsForOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("capture: count records: %w", err)
	}

	var next bom.OrderState
	switch {
	case n > 0 && order.State == bom.StateInProgress:
		next = bom.StateNeedsRebase
	case n == 0 && (order.State == bom.StateNeedsRebase || order.State == bom.StateConflict):
		next = bom.StateInProgress
	default:
		return nil
	}

	order.State = next
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("capture: update order state: %w", err)
	}
	slog.Info("order state changed by capture",
		"order", order.ID,
		"state", next)
	return nil
}

// candidateValue reads the order's candidate value for a component.
// Lines are matched by identity first, falling back to component lookup;
// nil means the candidate has no such line.
func (e *Engine) candidateValue(ctx context.Context, order bom.ChangeOrder, component bom.ProductID, lineID *bom.LineID) (*bom.LineValue, error) {
	if order.CandidateVersion == nil {
		return nil, nil
	}
	cand, err := e.store.GetVersion(ctx, *order.CandidateVersion)
	if err != nil {
		return nil, fmt.Errorf("capture: candidate version: %w", err)
	}
	if lineID != nil {
		if line, ok := cand.FindLineByID(*lineID); ok {
			v := line.Value.Clone()
			return &v, nil
		}
	}
	if line, ok := cand.FindLine(component); ok {
		v := line.Value.Clone()
		return &v, nil
	}
	return nil, nil
}

// kindFor classifies a record from its snapshots.
func kindFor(previous, next *bom.LineValue) bom.ChangeKind {
	switch {
	case previous == nil:
		return bom.ChangeAdd
	case next == nil:
		return bom.ChangeRemove
	default:
		return bom.ChangeUpdate
	}
}
