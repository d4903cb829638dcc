package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrMissingColumn is returned when a dataset header lacks a required column
var ErrMissingColumn = errors.New("missing column")

const (
	listSeparators      = "/;|"
	diagnosticSeparator = "/;|,"
)

// table is a parsed CSV file: a header index and the data rows
type table struct {
	columns map[string]int
	rows    [][]string
}

// toUTF8 returns a reader over raw as UTF-8: a BOM is dropped, and content that is not
// valid UTF-8 is decoded as ISO-8859-1.
func toUTF8(raw []byte) io.Reader {
	if utf8.Valid(raw) {
		return transform.NewReader(bytes.NewReader(raw), xunicode.BOMOverride(xunicode.UTF8.NewDecoder()))
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
}

// readTableFile parses a dataset file. A missing file is reported with os.ErrNotExist.
func readTableFile(path string, required ...string) (*table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return readTable(toUTF8(raw), required...)
}

func readTable(r io.Reader, required ...string) (*table, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = sniffDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty dataset", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &table{columns: make(map[string]int, len(header))}
	for i, h := range header {
		key := headerKey(h)
		if _, exists := t.columns[key]; !exists && key != "" {
			t.columns[key] = i
		}
	}
	for _, col := range required {
		if _, ok := t.columns[headerKey(col)]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

// sniffDelimiter picks ';' for spreadsheet exports whose header has no comma
func sniffDelimiter(content []byte) rune {
	firstLine, _, _ := bytes.Cut(content, []byte("\n"))
	if !bytes.ContainsRune(firstLine, ',') && bytes.ContainsRune(firstLine, ';') {
		return ';'
	}
	return ','
}

func headerKey(h string) string {
	h = strings.Trim(strings.TrimSpace(h), `"`)
	// Typographic apostrophes are common in spreadsheet headers
	h = strings.ReplaceAll(h, "’", "'")
	return strings.ToLower(norm.NFC.String(h))
}

// has reports whether the header carries column
func (t *table) has(column string) bool {
	_, ok := t.columns[headerKey(column)]
	return ok
}

// get returns the trimmed cell of row under column, empty when either is missing
func (t *table) get(row []string, column string) string {
	i, ok := t.columns[headerKey(column)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// first returns the trimmed first cell of row
func first(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(row[0])
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// splitValues splits a multi-valued cell on any rune of separators, dropping empty parts
func splitValues(cell, separators string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

func parseBool(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true", "oui", "1", "x":
		return true
	}
	return false
}
