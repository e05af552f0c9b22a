package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/store"
)

// Engine implements the BOM revision command surface: change-order
// lifecycle, diff capture, rebase/merge, and cascade propagation.
//
// The engine is synchronous - every operation is an in-memory
// transformation persisted through the store before returning. All
// mutations touching one product's version chain are serialized by the
// store's single-writer connection; cross-product operations are
// independent.
//
// INVARIANTS:
//   - At most one active version per product (store-enforced).
//   - A candidate version is owned by exactly one non-terminal order.
//   - Change records coalesce per (order, component); the previous-value
//     snapshot is frozen at first capture.
type Engine struct {
	store *store.Store
	clock *Clock
}

// New creates an Engine over the store and registers it as the store's
// line observer so diff capture sees every component-line mutation
// synchronously, in mutation order.
//
// The logical clock resumes from the highest persisted record seq.
func New(ctx context.Context, st *store.Store) (*Engine, error) {
	seq, err := st.MaxRecordSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: resume clock: %w", err)
	}

	e := &Engine{
		store: st,
		clock: NewClockAt(seq),
	}
	st.SetLineObserver(e)
	return e, nil
}

// Clock returns the engine's logical clock.
// Used by tests to stamp fixtures deterministically.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Order returns a change order by id.
func (e *Engine) Order(ctx context.Context, orderID bom.OrderID) (bom.ChangeOrder, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return bom.ChangeOrder{}, e.mapNotFound(err, "order", "change order", orderID)
	}
	return o, nil
}

// OrderRecords returns an order's pending change records in replay order.
func (e *Engine) OrderRecords(ctx context.Context, orderID bom.OrderID) ([]bom.ChangeRecord, error) {
	if _, err := e.Order(ctx, orderID); err != nil {
		return nil, err
	}
	return e.store.RecordsForOrder(ctx, orderID)
}

// Version returns a version with its lines.
func (e *Engine) Version(ctx context.Context, versionID bom.VersionID) (bom.Version, error) {
	v, err := e.store.GetVersion(ctx, versionID)
	if err != nil {
		return bom.Version{}, e.mapNotFound(err, "version", "version", versionID)
	}
	return v, nil
}

// ActiveVersion returns the product's authoritative version.
func (e *Engine) ActiveVersion(ctx context.Context, product bom.ProductID) (bom.Version, error) {
	v, err := e.store.ActiveVersion(ctx, product)
	if err != nil {
		return bom.Version{}, e.mapNotFound(err, "active_version", "active version for product", product)
	}
	return v, nil
}

// VersionHistory returns the product's versions, newest revision first.
func (e *Engine) VersionHistory(ctx context.Context, product bom.ProductID) ([]bom.Version, error) {
	return e.store.VersionsForProduct(ctx, product)
}

// Activations returns the product's durable activation log.
func (e *Engine) Activations(ctx context.Context, product bom.ProductID) ([]store.Activation, error) {
	return e.store.Activations(ctx, product)
}

// OrdersForProduct returns all of a product's change orders.
func (e *Engine) OrdersForProduct(ctx context.Context, product bom.ProductID) ([]bom.ChangeOrder, error) {
	return e.store.OrdersForProduct(ctx, product)
}

// InsertLine adds a component line to a version. If the version is some
// order's base, diff capture records the edit before this returns.
func (e *Engine) InsertLine(ctx context.Context, versionID bom.VersionID, component bom.ProductID, value bom.LineValue) (bom.ComponentLine, error) {
	if _, err := e.Version(ctx, versionID); err != nil {
		return bom.ComponentLine{}, err
	}

	line := bom.ComponentLine{
		ID:        bom.NewID(),
		VersionID: versionID,
		Component: component,
		Value:     value,
	}
	if err := e.store.InsertLine(ctx, line); err != nil {
		return bom.ComponentLine{}, err
	}
	return line, nil
}

// UpdateLine replaces a line's value.
func (e *Engine) UpdateLine(ctx context.Context, versionID bom.VersionID, lineID bom.LineID, value bom.LineValue) error {
	if err := e.store.UpdateLine(ctx, versionID, lineID, value); err != nil {
		return e.mapNotFound(err, "update_line", "component line", lineID)
	}
	return nil
}

// DeleteLine removes a line.
func (e *Engine) DeleteLine(ctx context.Context, versionID bom.VersionID, lineID bom.LineID) error {
	if err := e.store.DeleteLine(ctx, versionID, lineID); err != nil {
		return e.mapNotFound(err, "delete_line", "component line", lineID)
	}
	return nil
}

// mapNotFound converts the store's sentinel into the typed taxonomy;
// other errors pass through wrapped as-is.
func (e *Engine) mapNotFound(err error, op, kind string, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return newNotFound(op, kind, id)
	}
	return err
}
