// Package dataset loads the CSV knowledge base of road-safety interventions.
//
// The CSV is the single source of truth. Each row describes one intervention:
// the columns "S. No.", "code" and "clause" are citation metadata, every
// remaining column (issue description, suggested intervention, justification)
// is folded into the embedded content. Records are immutable after load; the
// vector index is derived from them and must be rebuilt when the CSV changes.
package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Metadata column headers recognised in the knowledge base CSV.
const (
	ColumnSerial = "S. No."
	ColumnCode   = "code"
	ColumnClause = "clause"
)

// ErrNoHeader indicates the CSV has no header row.
var ErrNoHeader = errors.New("dataset: missing header row")

// ErrEmpty indicates the CSV contains a header but no usable records.
var ErrEmpty = errors.New("dataset: no records")

// Record is one intervention entry from the knowledge base.
type Record struct {
	Serial  string // row number from "S. No."
	Code    string // source document code, e.g. "IRC:67"
	Clause  string // clause within the source document
	Content string // remaining columns as "header: value" lines
}

// ID returns a deterministic document ID for the record. It hashes the
// citation metadata and content, so reloading an unchanged CSV yields the
// same IDs and index rebuilds are idempotent.
func (r Record) ID() string {
	h := sha256.New()
	// Field separator guards against ambiguous concatenations.
	for _, part := range []string{r.Serial, r.Code, r.Clause, r.Content} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return "iv_" + hex.EncodeToString(sum[:16])
}

// Load reads the knowledge base CSV at path.
// Malformed rows (wrong field count) are skipped with a warning; a missing
// or empty file is an error because serving without the knowledge base would
// only ever produce fabricated answers.
func Load(path string, logger *slog.Logger) ([]Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	records, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

// Parse reads knowledge base records from r. Exposed separately from Load so
// tests and future non-file sources can reuse the row handling.
func Parse(r io.Reader, logger *slog.Logger) ([]Record, error) {
	cr := csv.NewReader(r)
	// Row length is validated manually so a single bad row does not abort
	// the whole load.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	var records []Record
	line := 1
	for {
		line++
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("skipping malformed row", "line", line, "error", err)
			continue
		}
		if len(row) != len(columns) {
			logger.Warn("skipping row with wrong column count",
				"line", line, "got", len(row), "want", len(columns))
			continue
		}

		rec := buildRecord(columns, row)
		if rec.Content == "" {
			logger.Warn("skipping row without content", "line", line)
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

// buildRecord splits a row into citation metadata and embedded content.
// Non-metadata columns are rendered as "header: value" lines, one per
// column, preserving CSV column order.
func buildRecord(columns, row []string) Record {
	var rec Record
	var content strings.Builder

	for i, col := range columns {
		value := strings.TrimSpace(row[i])
		switch col {
		case ColumnSerial:
			rec.Serial = value
		case ColumnCode:
			rec.Code = value
		case ColumnClause:
			rec.Clause = value
		default:
			if value == "" {
				continue
			}
			if content.Len() > 0 {
				content.WriteByte('\n')
			}
			content.WriteString(col)
			content.WriteString(": ")
			content.WriteString(value)
		}
	}

	rec.Content = content.String()
	return rec
}
