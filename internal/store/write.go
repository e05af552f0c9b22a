package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aldersyn/bomrev/internal/bom"
)

// CreateVersion inserts a version and all of its lines in one transaction.
// A freshly created version cannot yet be any order's base, so the line
// observer is not notified.
func (s *Store) CreateVersion(ctx context.Context, v bom.Version) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create version: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (id, product, revision, active, previous_version)
		VALUES (?, ?, ?, ?, ?)
	`,
		v.ID.String(),
		v.Product.String(),
		v.Revision,
		boolToInt(v.Active),
		nullUUID(v.PreviousVersion),
	)
	if err != nil {
		return fmt.Errorf("create version: %w", err)
	}

	for i, line := range v.Lines {
		value, err := marshalValue(&line.Value)
		if err != nil {
			return fmt.Errorf("create version: line %s: %w", line.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lines (version_id, id, component, value, position)
			VALUES (?, ?, ?, ?, ?)
		`,
			v.ID.String(),
			line.ID.String(),
			line.Component.String(),
			value.String,
			i,
		)
		if err != nil {
			return fmt.Errorf("create version: insert line %s: %w", line.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create version: commit: %w", err)
	}

	return nil
}

// InsertLine appends a component line to a version and notifies the
// observer synchronously.
func (s *Store) InsertLine(ctx context.Context, line bom.ComponentLine) error {
	value, err := marshalValue(&line.Value)
	if err != nil {
		return fmt.Errorf("insert line: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lines (version_id, id, component, value, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM lines WHERE version_id = ?))
	`,
		line.VersionID.String(),
		line.ID.String(),
		line.Component.String(),
		value.String,
		line.VersionID.String(),
	)
	if err != nil {
		return fmt.Errorf("insert line: %w", err)
	}

	after := line.Value.Clone()
	return s.notifyLine(ctx, LineChange{
		VersionID: line.VersionID,
		LineID:    line.ID,
		Component: line.Component,
		After:     &after,
	})
}

// UpdateLine replaces a line's value and notifies the observer with the
// before/after snapshots.
func (s *Store) UpdateLine(ctx context.Context, versionID bom.VersionID, lineID bom.LineID, value bom.LineValue) error {
	before, component, err := s.readLine(ctx, versionID, lineID)
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}

	encoded, err := marshalValue(&value)
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE lines SET value = ? WHERE version_id = ? AND id = ?
	`, encoded.String, versionID.String(), lineID.String())
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}

	after := value.Clone()
	return s.notifyLine(ctx, LineChange{
		VersionID: versionID,
		LineID:    lineID,
		Component: component,
		Before:    before,
		After:     &after,
	})
}

// DeleteLine removes a line and notifies the observer.
func (s *Store) DeleteLine(ctx context.Context, versionID bom.VersionID, lineID bom.LineID) error {
	before, component, err := s.readLine(ctx, versionID, lineID)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM lines WHERE version_id = ? AND id = ?
	`, versionID.String(), lineID.String())
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}

	return s.notifyLine(ctx, LineChange{
		VersionID: versionID,
		LineID:    lineID,
		Component: component,
		Before:    before,
	})
}

// ApplyLineQuiet writes a line mutation without notifying the observer.
// The rebase engine uses this when replaying records onto a candidate:
// candidate versions are never any order's base, so there is nothing to
// capture, and skipping dispatch keeps replay free of re-entrancy.
func (s *Store) ApplyLineQuiet(ctx context.Context, versionID bom.VersionID, lineID bom.LineID, component bom.ProductID, value *bom.LineValue) error {
	if value == nil {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM lines WHERE version_id = ? AND id = ?
		`, versionID.String(), lineID.String())
		if err != nil {
			return fmt.Errorf("apply line: delete: %w", err)
		}
		return nil
	}

	encoded, err := marshalValue(value)
	if err != nil {
		return fmt.Errorf("apply line: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lines (version_id, id, component, value, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM lines WHERE version_id = ?))
		ON CONFLICT(version_id, id) DO UPDATE SET value = excluded.value
	`,
		versionID.String(),
		lineID.String(),
		component.String(),
		encoded.String,
		versionID.String(),
	)
	if err != nil {
		return fmt.Errorf("apply line: upsert: %w", err)
	}
	return nil
}

// CreateOrder inserts a change order.
func (s *Store) CreateOrder(ctx context.Context, o bom.ChangeOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, product, base_version, candidate_version, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		o.ID.String(),
		o.Product.String(),
		o.BaseVersion.String(),
		nullUUID(o.CandidateVersion),
		string(o.State),
		o.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// UpdateOrder rewrites an order's mutable fields (base, candidate, state).
func (s *Store) UpdateOrder(ctx context.Context, o bom.ChangeOrder) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET base_version = ?, candidate_version = ?, state = ?
		WHERE id = ?
	`,
		o.BaseVersion.String(),
		nullUUID(o.CandidateVersion),
		string(o.State),
		o.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update order %s: %w", o.ID, ErrNotFound)
	}
	return nil
}

// DeleteOrder removes an order and (via cascade) its change records.
// Only draft orders are ever hard-deleted.
func (s *Store) DeleteOrder(ctx context.Context, id bom.OrderID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// PutRecord inserts or updates a change record by id.
func (s *Store) PutRecord(ctx context.Context, r bom.ChangeRecord) error {
	previous, err := marshalValue(r.Previous)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	next, err := marshalValue(r.Next)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO change_records
		(id, order_id, component, line_id, kind, previous, next, inherited, conflicting, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			next = excluded.next,
			conflicting = excluded.conflicting
	`,
		r.ID.String(),
		r.OrderID.String(),
		r.Component.String(),
		nullUUID(r.LineID),
		string(r.Kind),
		previous,
		next,
		boolToInt(r.Inherited),
		boolToInt(r.Conflicting),
		r.Seq,
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// DeleteRecord removes one change record.
func (s *Store) DeleteRecord(ctx context.Context, id bom.RecordID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM change_records WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// DeleteRecordsForOrder removes every record belonging to an order.
func (s *Store) DeleteRecordsForOrder(ctx context.Context, orderID bom.OrderID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM change_records WHERE order_id = ?`, orderID.String()); err != nil {
		return fmt.Errorf("delete records for order: %w", err)
	}
	return nil
}

// CancelOrder marks an order cancelled as a single atomic step: its change
// records are dropped, its candidate pointer is cleared, and the orphaned
// candidate version (if any) is deleted along with its lines. The pointer
// must be cleared before the version row goes away or the foreign key on
// orders.candidate_version rejects the delete.
func (s *Store) CancelOrder(ctx context.Context, orderID bom.OrderID, candidate *bom.VersionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cancel order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM change_records WHERE order_id = ?
	`, orderID.String()); err != nil {
		return fmt.Errorf("cancel order: drop records: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET candidate_version = NULL, state = ? WHERE id = ?
	`, string(bom.StateCancelled), orderID.String())
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cancel order %s: %w", orderID, ErrNotFound)
	}

	if candidate != nil {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM versions WHERE id = ?
		`, candidate.String()); err != nil {
			return fmt.Errorf("cancel order: drop candidate %s: %w", candidate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cancel order: commit: %w", err)
	}

	return nil
}

// ActivateVersion makes newVersion the product's authoritative version as
// a single atomic step: the previously active version (if any) is archived,
// newVersion's active flag is set, an activation event is appended, and -
// when orderID is non-nil - that order is marked applied in the same
// transaction. Returns the superseded version id and the activation seq.
func (s *Store) ActivateVersion(ctx context.Context, product bom.ProductID, newVersion bom.VersionID, source string, orderID *bom.OrderID) (*bom.VersionID, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("activate version: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var oldText sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM versions WHERE product = ? AND active = 1
	`, product.String()).Scan(&oldText)
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, fmt.Errorf("activate version: find active: %w", err)
	}

	old, err := parseNullUUID(oldText)
	if err != nil {
		return nil, 0, fmt.Errorf("activate version: %w", err)
	}

	if old != nil {
		if *old == newVersion {
			return nil, 0, fmt.Errorf("activate version: %s is already active", newVersion)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE versions SET active = 0 WHERE id = ?`, old.String()); err != nil {
			return nil, 0, fmt.Errorf("activate version: archive %s: %w", old, err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE versions SET active = 1 WHERE id = ?`, newVersion.String())
	if err != nil {
		return nil, 0, fmt.Errorf("activate version: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, 0, fmt.Errorf("activate version %s: %w", newVersion, ErrNotFound)
	}

	actRes, err := tx.ExecContext(ctx, `
		INSERT INTO activations (product, old_version, new_version, source, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		product.String(),
		nullUUID(old),
		newVersion.String(),
		source,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("activate version: append activation: %w", err)
	}
	seq, err := actRes.LastInsertId()
	if err != nil {
		return nil, 0, fmt.Errorf("activate version: activation seq: %w", err)
	}

	if orderID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET state = ? WHERE id = ?
		`, string(bom.StateApplied), orderID.String()); err != nil {
			return nil, 0, fmt.Errorf("activate version: mark order applied: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("activate version: commit: %w", err)
	}

	return old, seq, nil
}

// RepointOrder atomically re-targets an order at a new base version,
// optionally transitions its state, and seeds inherited change records.
// The cascade propagator requires all three to land together. Seeds
// reusing an existing record id coalesce into it, keeping the stored
// previous snapshot frozen.
func (s *Store) RepointOrder(ctx context.Context, orderID bom.OrderID, newBase bom.VersionID, newState bom.OrderState, records []bom.ChangeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repoint order: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET base_version = ?, state = ? WHERE id = ?
	`, newBase.String(), string(newState), orderID.String())
	if err != nil {
		return fmt.Errorf("repoint order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("repoint order %s: %w", orderID, ErrNotFound)
	}

	for _, r := range records {
		previous, err := marshalValue(r.Previous)
		if err != nil {
			return fmt.Errorf("repoint order: record %s: %w", r.ID, err)
		}
		next, err := marshalValue(r.Next)
		if err != nil {
			return fmt.Errorf("repoint order: record %s: %w", r.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO change_records
			(id, order_id, component, line_id, kind, previous, next, inherited, conflicting, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				kind = excluded.kind,
				next = excluded.next,
				conflicting = excluded.conflicting
		`,
			r.ID.String(),
			r.OrderID.String(),
			r.Component.String(),
			nullUUID(r.LineID),
			string(r.Kind),
			previous,
			next,
			boolToInt(r.Inherited),
			boolToInt(r.Conflicting),
			r.Seq,
		)
		if err != nil {
			return fmt.Errorf("repoint order: seed record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repoint order: commit: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
