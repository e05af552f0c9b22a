package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/store"
)

// propagate fans a version activation out to the product's other
// non-terminal orders. Each one is re-pointed at the new base; orders
// past Draft additionally inherit the old-base-to-new-base diff as
// pending records, so their next rebase folds the sibling's changes in.
//
// Drafts re-point silently: they own no candidate yet, so there is
// nothing to reconcile.
func (e *Engine) propagate(ctx context.Context, ev VersionActivated, exclude *bom.OrderID) error {
	orders, err := e.store.OrdersForProduct(ctx, ev.Product)
	if err != nil {
		return fmt.Errorf("cascade: orders for product: %w", err)
	}

	newBase, err := e.store.GetVersion(ctx, ev.New)
	if err != nil {
		return fmt.Errorf("cascade: new base: %w", err)
	}

	for _, order := range orders {
		if exclude != nil && order.ID == *exclude {
			continue
		}
		if order.State.Terminal() {
			continue
		}
		if order.BaseVersion == ev.New {
			continue
		}

		if order.State == bom.StateDraft {
			if err := e.store.RepointOrder(ctx, order.ID, ev.New, bom.StateDraft, nil); err != nil {
				return fmt.Errorf("cascade: repoint draft %s: %w", order.ID, err)
			}
			slog.Debug("draft re-pointed", "order", order.ID, "base", ev.New)
			continue
		}

		if err := e.cascadeToOrder(ctx, order, newBase); err != nil {
			return err
		}
	}
	return nil
}

// cascadeToOrder seeds one order with inherited records for the diff
// between its current base and the newly activated version, then
// re-points it. Seeding coalesces into inherited records left over from
// an earlier, un-rebased cascade.
func (e *Engine) cascadeToOrder(ctx context.Context, order bom.ChangeOrder, newBase bom.Version) error {
	oldBase, err := e.store.GetVersion(ctx, order.BaseVersion)
	if err != nil {
		return fmt.Errorf("cascade: old base for %s: %w", order.ID, err)
	}

	existing, err := e.store.RecordsForOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("cascade: records for %s: %w", order.ID, err)
	}
	inherited := make(map[bom.ProductID]bom.ChangeRecord)
	live := 0
	for _, r := range existing {
		if r.Inherited {
			inherited[r.Component] = r
		} else {
			live++
		}
	}

	var seeds []bom.ChangeRecord
	for _, d := range diffVersions(oldBase, newBase) {
		rec, ok := inherited[d.Component]
		if ok {
			// Coalesce: frozen previous, fresh next.
			rec.Next = bom.ClonePtr(d.Next)
			rec.Conflicting = false
			delete(inherited, d.Component)
		} else {
			rec = bom.ChangeRecord{
				ID:        bom.NewID(),
				OrderID:   order.ID,
				Component: d.Component,
				Previous:  bom.ClonePtr(d.Previous),
				Next:      bom.ClonePtr(d.Next),
				Inherited: true,
				Seq:       e.clock.Next(),
			}
			if d.LineID != nil {
				id := *d.LineID
				rec.LineID = &id
			}
		}
		rec.Kind = kindFor(rec.Previous, rec.Next)

		moot := rec.NetZero()
		if !moot {
			current, err := e.candidateValue(ctx, order, d.Component, rec.LineID)
			if err != nil {
				return err
			}
			moot = bom.EqualPtr(rec.Next, current)
		}
		if moot {
			if err := e.store.DeleteRecord(ctx, rec.ID); err != nil {
				return fmt.Errorf("cascade: drop moot seed: %w", err)
			}
			continue
		}
		seeds = append(seeds, rec)
	}

	// Leftover inherited records describe diffs the newest base has since
	// absorbed or reverted; the fresh old-to-new diff supersedes them.
	for _, r := range inherited {
		if err := e.store.DeleteRecord(ctx, r.ID); err != nil {
			return fmt.Errorf("cascade: drop stale seed: %w", err)
		}
	}

	pending := live + len(seeds)
	state := order.State
	switch {
	case pending > 0 && state == bom.StateInProgress:
		state = bom.StateNeedsRebase
	case pending == 0 && (state == bom.StateNeedsRebase || state == bom.StateConflict):
		state = bom.StateInProgress
	}

	if err := e.store.RepointOrder(ctx, order.ID, newBase.ID, state, seeds); err != nil {
		return fmt.Errorf("cascade: repoint %s: %w", order.ID, err)
	}

	slog.Info("order re-pointed",
		"order", order.ID,
		"base", newBase.ID,
		"seeded", len(seeds),
		"state", state)
	return nil
}

// lineDiff is one entry of a version-to-version state diff.
type lineDiff struct {
	Component bom.ProductID
	LineID    *bom.LineID
	Previous  *bom.LineValue
	Next      *bom.LineValue
}

// diffVersions computes the state diff from old to new, matching lines by
// identity (identities survive cloning and rebasing). Old line order then
// new line order keeps the result deterministic.
func diffVersions(old, new bom.Version) []lineDiff {
	var diffs []lineDiff

	for _, ol := range old.Lines {
		id := ol.ID
		nl, ok := new.FindLineByID(id)
		switch {
		case !ok:
			prev := ol.Value.Clone()
			diffs = append(diffs, lineDiff{
				Component: ol.Component,
				LineID:    &id,
				Previous:  &prev,
			})
		case !nl.Value.Equal(ol.Value):
			prev := ol.Value.Clone()
			next := nl.Value.Clone()
			diffs = append(diffs, lineDiff{
				Component: ol.Component,
				LineID:    &id,
				Previous:  &prev,
				Next:      &next,
			})
		}
	}

	for _, nl := range new.Lines {
		if _, ok := old.FindLineByID(nl.ID); ok {
			continue
		}
		id := nl.ID
		next := nl.Value.Clone()
		diffs = append(diffs, lineDiff{
			Component: nl.Component,
			LineID:    &id,
			Next:      &next,
		})
	}

	return diffs
}

// PromoteVersion creates and activates a new version for a product
// directly from a full set of line specs, outside the change-order flow.
// The first promotion for a product creates revision 1.
//
// Lines matching an existing component keep that line's identity so the
// cascade diff stays minimal for in-flight orders.
func (e *Engine) PromoteVersion(ctx context.Context, product bom.ProductID, lines []bom.LineSpec) (bom.Version, error) {
	active, err := e.store.ActiveVersion(ctx, product)
	first := false
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return bom.Version{}, fmt.Errorf("promote: active version: %w", err)
		}
		first = true
	}

	v := bom.Version{
		ID:      bom.NewID(),
		Product: product,
	}
	if first {
		v.Revision = 1
	} else {
		prev := active.ID
		v.Revision = active.Revision + 1
		v.PreviousVersion = &prev
	}

	used := make(map[bom.LineID]bool)
	for _, spec := range lines {
		line := bom.ComponentLine{
			ID:        bom.NewID(),
			VersionID: v.ID,
			Component: spec.Component,
			Value:     spec.Value.Clone(),
		}
		if !first {
			for _, prev := range active.Lines {
				if prev.Component == spec.Component && !used[prev.ID] {
					line.ID = prev.ID
					used[prev.ID] = true
					break
				}
			}
		}
		v.Lines = append(v.Lines, line)
	}

	if err := e.store.CreateVersion(ctx, v); err != nil {
		return bom.Version{}, fmt.Errorf("promote: create version: %w", err)
	}
	old, seq, err := e.store.ActivateVersion(ctx, product, v.ID, string(SourcePromote), nil)
	if err != nil {
		return bom.Version{}, fmt.Errorf("promote: activate: %w", err)
	}
	v.Active = true

	slog.Info("version promoted",
		"product", product,
		"version", v.ID,
		"revision", v.Revision,
		"activation_seq", seq)

	ev := VersionActivated{
		Product: product,
		Old:     old,
		New:     v.ID,
		Source:  SourcePromote,
		Seq:     seq,
	}
	if err := e.propagate(ctx, ev, nil); err != nil {
		return bom.Version{}, fmt.Errorf("promote: cascade: %w", err)
	}
	return v, nil
}
