package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aldersyn/bomrev/internal/bom"
)

// CreateOrder opens a Draft change order against the product's currently
// active version. The base pointer is fixed now; the active version may
// move underneath the order afterwards.
func (e *Engine) CreateOrder(ctx context.Context, product bom.ProductID) (bom.ChangeOrder, error) {
	active, err := e.ActiveVersion(ctx, product)
	if err != nil {
		return bom.ChangeOrder{}, err
	}

	order := bom.ChangeOrder{
		ID:          bom.NewID(),
		Product:     product,
		BaseVersion: active.ID,
		State:       bom.StateDraft,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateOrder(ctx, order); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("create order: %w", err)
	}

	slog.Info("change order created",
		"order", order.ID,
		"product", product,
		"base", order.BaseVersion)
	return order, nil
}

// StartRevision moves a Draft order to InProgress by cloning its base
// version into a fresh candidate the order owns exclusively.
//
// The clone keeps every line's identity so later rebases can match
// records to candidate lines even when a component appears twice.
func (e *Engine) StartRevision(ctx context.Context, orderID bom.OrderID) (bom.ChangeOrder, error) {
	order, err := e.Order(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	if order.State != bom.StateDraft {
		return bom.ChangeOrder{}, newInvalidState("start_revision", orderID, order.State)
	}

	base, err := e.Version(ctx, order.BaseVersion)
	if err != nil {
		return bom.ChangeOrder{}, err
	}

	candidate := cloneVersion(base)
	if err := e.store.CreateVersion(ctx, candidate); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("create candidate: %w", err)
	}

	order.CandidateVersion = &candidate.ID
	order.State = bom.StateInProgress
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("start revision: %w", err)
	}

	slog.Info("revision started",
		"order", orderID,
		"base", base.ID,
		"candidate", candidate.ID,
		"revision", candidate.Revision)
	return order, nil
}

// cloneVersion deep-copies a version into an inactive successor.
// Line identities are preserved; only the version identity changes.
func cloneVersion(base bom.Version) bom.Version {
	prev := base.ID
	clone := bom.Version{
		ID:              bom.NewID(),
		Product:         base.Product,
		Revision:        base.Revision + 1,
		Active:          false,
		PreviousVersion: &prev,
		Lines:           make([]bom.ComponentLine, len(base.Lines)),
	}
	for i, l := range base.Lines {
		c := l.Clone()
		c.VersionID = clone.ID
		clone.Lines[i] = c
	}
	return clone
}

// Apply activates the order's candidate version as the product's new
// authoritative BOM and marks the order Applied, atomically. It is
// rejected while any change record (live or inherited) remains.
//
// On success the resulting activation event cascades to sibling orders
// before Apply returns.
func (e *Engine) Apply(ctx context.Context, orderID bom.OrderID) (bom.ChangeOrder, error) {
	order, err := e.Order(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	switch order.State {
	case bom.StateInProgress, bom.StateNeedsRebase, bom.StateConflict:
	default:
		return bom.ChangeOrder{}, newInvalidState("apply", orderID, order.State)
	}

	pending, err := e.store.CountRecordsForOrder(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("apply: count records: %w", err)
	}
	if pending > 0 {
		return bom.ChangeOrder{}, newPendingRebase(orderID, pending)
	}
	if order.CandidateVersion == nil {
		return bom.ChangeOrder{}, newInvalidState("apply", orderID, order.State)
	}

	old, seq, err := e.store.ActivateVersion(ctx, order.Product, *order.CandidateVersion, string(SourceApply), &orderID)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("apply: activate: %w", err)
	}
	order.State = bom.StateApplied

	slog.Info("order applied",
		"order", orderID,
		"product", order.Product,
		"version", *order.CandidateVersion,
		"activation_seq", seq)

	ev := VersionActivated{
		Product: order.Product,
		Old:     old,
		New:     *order.CandidateVersion,
		Source:  SourceApply,
		Seq:     seq,
	}
	if err := e.propagate(ctx, ev, &orderID); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("apply: cascade: %w", err)
	}
	return order, nil
}

// Cancel abandons a non-terminal order: its records are dropped and its
// candidate version, which nothing else references, is deleted.
func (e *Engine) Cancel(ctx context.Context, orderID bom.OrderID) (bom.ChangeOrder, error) {
	order, err := e.Order(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	if !order.State.CanCancel() {
		return bom.ChangeOrder{}, newInvalidState("cancel", orderID, order.State)
	}

	if err := e.store.CancelOrder(ctx, orderID, order.CandidateVersion); err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("cancel: %w", err)
	}

	order.CandidateVersion = nil
	order.State = bom.StateCancelled

	slog.Info("order cancelled", "order", orderID, "product", order.Product)
	return order, nil
}

// DeleteDraft hard-deletes an order that never started a revision.
// Anything past Draft must go through Cancel so the candidate version
// and records are cleaned up.
func (e *Engine) DeleteDraft(ctx context.Context, orderID bom.OrderID) error {
	order, err := e.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if order.State != bom.StateDraft {
		return newInvalidState("delete_draft", orderID, order.State)
	}
	if err := e.store.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	slog.Info("draft deleted", "order", orderID)
	return nil
}
