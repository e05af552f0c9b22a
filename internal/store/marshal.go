package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/aldersyn/bomrev/internal/bom"
)

// marshalValue converts an optional line value to JSON TEXT for storage.
// A nil value (absent line) is stored as SQL NULL.
func marshalValue(v *bom.LineValue) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal line value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue parses JSON TEXT back into an optional line value.
func unmarshalValue(s sql.NullString) (*bom.LineValue, error) {
	if !s.Valid {
		return nil, nil
	}
	var v bom.LineValue
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, fmt.Errorf("unmarshal line value: %w", err)
	}
	return &v, nil
}

// nullUUID converts an optional id to a nullable TEXT column value.
func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// parseNullUUID converts a nullable TEXT column back to an optional id.
func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid %q: %w", s.String, err)
	}
	return &id, nil
}
