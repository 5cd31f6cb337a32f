package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
)

// Options controls how table files are parsed.
type Options struct {
	Comma     rune              // CSV field delimiter; 0 means ';'
	Encoding  encoding.Encoding // CSV text encoding; nil means UTF-8
	UttHeader string
	TagHeader string
}

// metadataSheets are skipped when picking the data sheet of a workbook.
var metadataSheets = map[string]bool{
	"info":     true,
	"metadata": true,
	"about":    true,
	"readme":   true,
	"notes":    true,
}

// Supported reports whether a file name has an extension LoadFile can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ListFiles returns the entity table files in dir, sorted by name.
// Hidden files and office lock files are ignored.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if Supported(name) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	// os.ReadDir already sorts by file name.
	return files, nil
}

// LoadDir loads every entity table in dir in file name order.
func LoadDir(dir string, opts Options) ([]*Table, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(files))
	for _, path := range files {
		t, err := LoadFile(path, opts)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// LoadFile loads one entity table, choosing the parser by extension.
func LoadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f, name, opts)
	case ".xlsx":
		return LoadXLSX(f, name, opts)
	default:
		return nil, fmt.Errorf("%w: %s", internalerr.ErrUnsupportedFormat, path)
	}
}

// LoadCSV parses delimited text with a header row.
func LoadCSV(r io.Reader, name string, opts Options) (*Table, error) {
	enc := opts.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.Comma = opts.Comma
	if reader.Comma == 0 {
		reader.Comma = ';'
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // short records are dropped later as incomplete

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", internalerr.ErrInvalidInput, name)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	return New(name, header, records, opts.UttHeader, opts.TagHeader)
}

// LoadXLSX reads the first data sheet of a workbook; its first row is the header.
func LoadXLSX(r io.Reader, name string, opts Options) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", internalerr.ErrInvalidInput, name)
	}

	sheet := sheets[len(sheets)-1]
	for _, s := range sheets {
		if !metadataSheets[strings.ToLower(s)] {
			sheet = s
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", name, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", internalerr.ErrInvalidInput, name)
	}

	return New(name, rows[0], rows[1:], opts.UttHeader, opts.TagHeader)
}
