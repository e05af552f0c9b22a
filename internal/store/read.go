package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aldersyn/bomrev/internal/bom"
)

// ErrNotFound is returned (wrapped) when a referenced version, order,
// line, or record has no matching row.
var ErrNotFound = errors.New("not found")

// GetVersion returns a version with its lines in stable position order.
func (s *Store) GetVersion(ctx context.Context, id bom.VersionID) (bom.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product, revision, active, previous_version
		FROM versions WHERE id = ?
	`, id.String())

	v, err := scanVersion(row)
	if err != nil {
		return bom.Version{}, fmt.Errorf("get version %s: %w", id, err)
	}

	v.Lines, err = s.linesForVersion(ctx, v.ID)
	if err != nil {
		return bom.Version{}, fmt.Errorf("get version %s: %w", id, err)
	}

	return v, nil
}

// ActiveVersion returns the product's currently authoritative version.
func (s *Store) ActiveVersion(ctx context.Context, product bom.ProductID) (bom.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product, revision, active, previous_version
		FROM versions WHERE product = ? AND active = 1
	`, product.String())

	v, err := scanVersion(row)
	if err != nil {
		return bom.Version{}, fmt.Errorf("active version for %s: %w", product, err)
	}

	v.Lines, err = s.linesForVersion(ctx, v.ID)
	if err != nil {
		return bom.Version{}, fmt.Errorf("active version for %s: %w", product, err)
	}

	return v, nil
}

// VersionsForProduct returns all of a product's versions, newest revision
// first, without lines. Used by the history command.
func (s *Store) VersionsForProduct(ctx context.Context, product bom.ProductID) ([]bom.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product, revision, active, previous_version
		FROM versions WHERE product = ?
		ORDER BY revision DESC, id ASC
	`, product.String())
	if err != nil {
		return nil, fmt.Errorf("versions for product: %w", err)
	}
	defer rows.Close()

	versions := []bom.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("versions for product: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("versions for product: %w", err)
	}

	return versions, nil
}

// linesForVersion returns a version's lines in position order.
func (s *Store) linesForVersion(ctx context.Context, versionID bom.VersionID) ([]bom.ComponentLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, component, value FROM lines
		WHERE version_id = ?
		ORDER BY position ASC, id ASC
	`, versionID.String())
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	lines := []bom.ComponentLine{}
	for rows.Next() {
		var idText, componentText, valueText string
		if err := rows.Scan(&idText, &componentText, &valueText); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		line, err := buildLine(versionID, idText, componentText, valueText)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lines: %w", err)
	}

	return lines, nil
}

// readLine returns one line's value and component, for before-snapshots.
func (s *Store) readLine(ctx context.Context, versionID bom.VersionID, lineID bom.LineID) (*bom.LineValue, bom.ProductID, error) {
	var componentText, valueText string
	err := s.db.QueryRowContext(ctx, `
		SELECT component, value FROM lines WHERE version_id = ? AND id = ?
	`, versionID.String(), lineID.String()).Scan(&componentText, &valueText)
	if err == sql.ErrNoRows {
		return nil, uuid.Nil, fmt.Errorf("line %s in version %s: %w", lineID, versionID, ErrNotFound)
	}
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("read line: %w", err)
	}

	component, err := uuid.Parse(componentText)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("read line: %w", err)
	}
	value, err := unmarshalValue(sql.NullString{String: valueText, Valid: true})
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("read line: %w", err)
	}

	return value, component, nil
}

// GetOrder returns a change order by id.
func (s *Store) GetOrder(ctx context.Context, id bom.OrderID) (bom.ChangeOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product, base_version, candidate_version, state, created_at
		FROM orders WHERE id = ?
	`, id.String())

	o, err := scanOrder(row)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// OrdersByBase returns every order borrowing the given version as base,
// in creation order. This is the per-mutation lookup diff capture relies
// on; it is indexed, not cached.
func (s *Store) OrdersByBase(ctx context.Context, base bom.VersionID) ([]bom.ChangeOrder, error) {
	return s.queryOrders(ctx, `
		SELECT id, product, base_version, candidate_version, state, created_at
		FROM orders WHERE base_version = ?
		ORDER BY created_at ASC, id ASC
	`, base.String())
}

// OrdersForProduct returns all of a product's orders in creation order.
func (s *Store) OrdersForProduct(ctx context.Context, product bom.ProductID) ([]bom.ChangeOrder, error) {
	return s.queryOrders(ctx, `
		SELECT id, product, base_version, candidate_version, state, created_at
		FROM orders WHERE product = ?
		ORDER BY created_at ASC, id ASC
	`, product.String())
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]bom.ChangeOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []bom.ChangeOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// LiveRecord returns the coalescing target for (order, component): the
// non-inherited record, if one exists.
func (s *Store) LiveRecord(ctx context.Context, orderID bom.OrderID, component bom.ProductID) (bom.ChangeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, component, line_id, kind, previous, next, inherited, conflicting, seq
		FROM change_records
		WHERE order_id = ? AND component = ? AND inherited = 0
	`, orderID.String(), component.String())

	r, err := scanRecord(row)
	if err != nil {
		return bom.ChangeRecord{}, fmt.Errorf("live record: %w", err)
	}
	return r, nil
}

// RecordsForOrder returns all pending records for an order in seq order -
// the order they were captured or seeded, which is the order a rebase
// must replay them in.
func (s *Store) RecordsForOrder(ctx context.Context, orderID bom.OrderID) ([]bom.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, component, line_id, kind, previous, next, inherited, conflicting, seq
		FROM change_records
		WHERE order_id = ?
		ORDER BY seq ASC, id ASC
	`, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("records for order: %w", err)
	}
	defer rows.Close()

	records := []bom.ChangeRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("records for order: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records for order: %w", err)
	}

	return records, nil
}

// MaxRecordSeq returns the highest seq stamped on any persisted change
// record, or 0 when none exist. The engine resumes its logical clock
// from this value so restarts never reuse sequence numbers.
func (s *Store) MaxRecordSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM change_records
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max record seq: %w", err)
	}
	return seq, nil
}

// CountRecordsForOrder returns how many pending records an order holds,
// inherited ones included.
func (s *Store) CountRecordsForOrder(ctx context.Context, orderID bom.OrderID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM change_records WHERE order_id = ?
	`, orderID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Activation is one durable version-activation event.
type Activation struct {
	Seq        int64
	Product    bom.ProductID
	OldVersion *bom.VersionID
	NewVersion bom.VersionID
	Source     string
	OccurredAt time.Time
}

// Activations returns a product's activation log in event order.
func (s *Store) Activations(ctx context.Context, product bom.ProductID) ([]Activation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, product, old_version, new_version, source, occurred_at
		FROM activations WHERE product = ?
		ORDER BY seq ASC
	`, product.String())
	if err != nil {
		return nil, fmt.Errorf("activations: %w", err)
	}
	defer rows.Close()

	activations := []Activation{}
	for rows.Next() {
		var (
			a           Activation
			productText string
			oldText     sql.NullString
			newText     string
			occurredAt  string
		)
		if err := rows.Scan(&a.Seq, &productText, &oldText, &newText, &a.Source, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		if a.Product, err = uuid.Parse(productText); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		if a.OldVersion, err = parseNullUUID(oldText); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		if a.NewVersion, err = uuid.Parse(newText); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		if a.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		activations = append(activations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activations: %w", err)
	}

	return activations, nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (bom.Version, error) {
	var (
		idText, productText string
		revision            int64
		active              int
		previousText        sql.NullString
	)
	err := row.Scan(&idText, &productText, &revision, &active, &previousText)
	if err == sql.ErrNoRows {
		return bom.Version{}, ErrNotFound
	}
	if err != nil {
		return bom.Version{}, err
	}

	id, err := uuid.Parse(idText)
	if err != nil {
		return bom.Version{}, fmt.Errorf("parse version id: %w", err)
	}
	product, err := uuid.Parse(productText)
	if err != nil {
		return bom.Version{}, fmt.Errorf("parse product id: %w", err)
	}
	previous, err := parseNullUUID(previousText)
	if err != nil {
		return bom.Version{}, err
	}

	return bom.Version{
		ID:              id,
		Product:         product,
		Revision:        revision,
		Active:          active == 1,
		PreviousVersion: previous,
	}, nil
}

func scanOrder(row scanner) (bom.ChangeOrder, error) {
	var (
		idText, productText, baseText string
		candidateText                 sql.NullString
		stateText, createdAt          string
	)
	err := row.Scan(&idText, &productText, &baseText, &candidateText, &stateText, &createdAt)
	if err == sql.ErrNoRows {
		return bom.ChangeOrder{}, ErrNotFound
	}
	if err != nil {
		return bom.ChangeOrder{}, err
	}

	id, err := uuid.Parse(idText)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("parse order id: %w", err)
	}
	product, err := uuid.Parse(productText)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("parse product id: %w", err)
	}
	base, err := uuid.Parse(baseText)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("parse base version id: %w", err)
	}
	candidate, err := parseNullUUID(candidateText)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	state, err := bom.ParseOrderState(stateText)
	if err != nil {
		return bom.ChangeOrder{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return bom.ChangeOrder{}, fmt.Errorf("parse created_at: %w", err)
	}

	return bom.ChangeOrder{
		ID:               id,
		Product:          product,
		BaseVersion:      base,
		CandidateVersion: candidate,
		State:            state,
		CreatedAt:        created,
	}, nil
}

func scanRecord(row scanner) (bom.ChangeRecord, error) {
	var (
		idText, orderText, componentText string
		lineText                         sql.NullString
		kindText                         string
		previousText, nextText           sql.NullString
		inherited, conflicting           int
		seq                              int64
	)
	err := row.Scan(&idText, &orderText, &componentText, &lineText, &kindText,
		&previousText, &nextText, &inherited, &conflicting, &seq)
	if err == sql.ErrNoRows {
		return bom.ChangeRecord{}, ErrNotFound
	}
	if err != nil {
		return bom.ChangeRecord{}, err
	}

	id, err := uuid.Parse(idText)
	if err != nil {
		return bom.ChangeRecord{}, fmt.Errorf("parse record id: %w", err)
	}
	orderID, err := uuid.Parse(orderText)
	if err != nil {
		return bom.ChangeRecord{}, fmt.Errorf("parse order id: %w", err)
	}
	component, err := uuid.Parse(componentText)
	if err != nil {
		return bom.ChangeRecord{}, fmt.Errorf("parse component id: %w", err)
	}
	lineID, err := parseNullUUID(lineText)
	if err != nil {
		return bom.ChangeRecord{}, err
	}
	kind, err := bom.ParseChangeKind(kindText)
	if err != nil {
		return bom.ChangeRecord{}, err
	}
	previous, err := unmarshalValue(previousText)
	if err != nil {
		return bom.ChangeRecord{}, err
	}
	next, err := unmarshalValue(nextText)
	if err != nil {
		return bom.ChangeRecord{}, err
	}

	return bom.ChangeRecord{
		ID:          id,
		OrderID:     orderID,
		Component:   component,
		LineID:      lineID,
		Kind:        kind,
		Previous:    previous,
		Next:        next,
		Inherited:   inherited == 1,
		Conflicting: conflicting == 1,
		Seq:         seq,
	}, nil
}

func buildLine(versionID bom.VersionID, idText, componentText, valueText string) (bom.ComponentLine, error) {
	id, err := uuid.Parse(idText)
	if err != nil {
		return bom.ComponentLine{}, fmt.Errorf("parse line id: %w", err)
	}
	component, err := uuid.Parse(componentText)
	if err != nil {
		return bom.ComponentLine{}, fmt.Errorf("parse component id: %w", err)
	}
	value, err := unmarshalValue(sql.NullString{String: valueText, Valid: true})
	if err != nil {
		return bom.ComponentLine{}, err
	}

	return bom.ComponentLine{
		ID:        id,
		VersionID: versionID,
		Component: component,
		Value:     *value,
	}, nil
}
