// Package ingest reads component lines from tabular files (.csv, .xlsx)
// into BOM definition documents, so spreadsheets maintained outside the
// tool can be promoted directly.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aldersyn/bomrev/internal/bomdef"
)

// ErrUnsupportedFormat is returned for file extensions we cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Expected column headers, matched case-insensitively. Operation is
// optional; the rest are required.
const (
	colComponent = "component"
	colQuantity  = "quantity"
	colUnit      = "unit"
	colOperation = "operation"
)

// ReadFile parses a tabular file into a validated document for the given
// product. The first sheet (xlsx) or the whole file (csv) must carry a
// header row naming component, quantity and unit columns.
func ReadFile(path, product string) (*bomdef.Document, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = parseCSV(payload)
	case ".xlsx":
		rows, err = parseExcel(payload)
	default:
		return nil, fmt.Errorf("ingest: %w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", path, err)
	}

	doc, err := buildDocument(product, rows)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", path, err)
	}
	return doc, nil
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

// buildDocument maps header-addressed rows into a document and runs it
// through the usual validation.
func buildDocument(product string, rows [][]string) (*bomdef.Document, error) {
	header, dataRows := splitHeader(rows)
	if header == nil {
		return nil, errors.New("no header row found")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colComponent, colQuantity, colUnit} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	doc := &bomdef.Document{Product: product}
	for i, row := range dataRows {
		line := bomdef.Line{
			Component: cell(row, cols[colComponent]),
			Quantity:  cell(row, cols[colQuantity]),
			Unit:      cell(row, cols[colUnit]),
		}
		if op, ok := cols[colOperation]; ok {
			line.Operation = cell(row, op)
		}
		if line.Component == "" && line.Quantity == "" && line.Unit == "" {
			continue // blank row
		}
		if line.Component == "" {
			return nil, fmt.Errorf("row %d: empty component", i+2)
		}
		doc.Lines = append(doc.Lines, line)
	}

	if err := bomdef.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// splitHeader returns the first non-empty row as header and the rest as
// data rows.
func splitHeader(rows [][]string) ([]string, [][]string) {
	for i, row := range rows {
		empty := true
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if !empty {
			return row, rows[i+1:]
		}
	}
	return nil, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
