// Package table loads entity tables: one file per slot, each row holding an
// utterance fragment and the tag that goes with it.
package table

import (
	"fmt"
	"strings"

	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
)

// Fragment is the (utterance, tag) pair contributed by one table row.
type Fragment struct {
	Utterance string
	Tag       string
}

// Table is one entity table. UttCol and TagCol index into Header and every
// record; they are resolved once when the table is loaded.
type Table struct {
	Name    string
	Header  []string
	Records [][]string
	UttCol  int
	TagCol  int
}

// New builds a table from a header row and its records, locating the
// utterance and tag columns by name.
//
// When neither name matches and the table has exactly two columns, the first
// column is taken as the utterance and the second as the tag.
func New(name string, header []string, records [][]string, uttHeader, tagHeader string) (*Table, error) {
	uttCol := columnIndex(header, uttHeader)
	tagCol := columnIndex(header, tagHeader)

	if uttCol < 0 && tagCol < 0 && len(header) == 2 {
		uttCol, tagCol = 0, 1
	}
	if uttCol < 0 {
		return nil, fmt.Errorf("%w: %s has no %q column", internalerr.ErrMissingColumn, name, uttHeader)
	}
	if tagCol < 0 {
		return nil, fmt.Errorf("%w: %s has no %q column", internalerr.ErrMissingColumn, name, tagHeader)
	}

	return &Table{
		Name:    name,
		Header:  header,
		Records: records,
		UttCol:  uttCol,
		TagCol:  tagCol,
	}, nil
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// DropIncomplete removes records with a missing field: an empty cell or a
// record shorter than the header. It returns the number of records removed.
func (t *Table) DropIncomplete() int {
	kept := t.Records[:0]
	for _, rec := range t.Records {
		if complete(rec, len(t.Header)) {
			kept = append(kept, rec)
		}
	}
	dropped := len(t.Records) - len(kept)
	t.Records = kept
	return dropped
}

// Truncate keeps the first n records. n <= 0 keeps everything.
func (t *Table) Truncate(n int) {
	if n > 0 && len(t.Records) > n {
		t.Records = t.Records[:n]
	}
}

// Fragments returns the utterance and tag of every record, in order.
func (t *Table) Fragments() []Fragment {
	frags := make([]Fragment, len(t.Records))
	for i, rec := range t.Records {
		frags[i] = Fragment{
			Utterance: field(rec, t.UttCol),
			Tag:       field(rec, t.TagCol),
		}
	}
	return frags
}

func complete(rec []string, width int) bool {
	if len(rec) < width {
		return false
	}
	for _, v := range rec[:width] {
		if v == "" {
			return false
		}
	}
	return true
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func columnIndex(header []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
