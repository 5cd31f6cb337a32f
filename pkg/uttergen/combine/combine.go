// Package combine computes the cartesian product of entity tables.
package combine

import "github.com/cognicore/uttergen/pkg/uttergen/table"

// Row is one combination: a fragment from every table, in table order.
type Row []table.Fragment

// Options bounds the product. Zero disables a cap.
type Options struct {
	MaxRows    int // rows kept per table before the product
	MaxRecords int // combinations kept after the product
}

// Product is the result of combining a set of tables.
type Product struct {
	Tables  []string // source table names, in fragment order
	Rows    []Row
	Dropped int // incomplete rows removed before combining
}

// Tables drops incomplete rows, truncates every table to MaxRows and folds
// the tables left to right into their cartesian product. The first table
// varies slowest. The result holds at most MaxRecords rows.
//
// The tables are modified in place.
func Tables(tables []*table.Table, opts Options) Product {
	p := Product{Tables: make([]string, 0, len(tables))}

	frags := make([][]table.Fragment, 0, len(tables))
	for _, t := range tables {
		p.Dropped += t.DropIncomplete()
		t.Truncate(opts.MaxRows)
		p.Tables = append(p.Tables, t.Name)
		frags = append(frags, t.Fragments())
	}

	p.Rows = Fold(frags, opts.MaxRecords)
	return p
}

// Fold returns the cartesian product of the given fragment lists, keeping at
// most limit rows (limit <= 0 keeps all). No lists, or any empty list, yields
// no rows.
//
// Row r of a product depends only on row r/len(right) of the left operand,
// so capping every intermediate product at limit gives the same first rows
// as capping the full product.
func Fold(lists [][]table.Fragment, limit int) []Row {
	if len(lists) == 0 {
		return nil
	}

	acc := make([]Row, 0, capped(len(lists[0]), limit))
	for _, f := range lists[0] {
		if limit > 0 && len(acc) == limit {
			break
		}
		acc = append(acc, Row{f})
	}

	for _, right := range lists[1:] {
		acc = Cross(acc, right, limit)
		if len(acc) == 0 {
			return nil
		}
	}

	if len(acc) == 0 {
		return nil
	}
	return acc
}

// Cross pairs every left row with every fragment of right; left rows form
// the outer loop.
func Cross(left []Row, right []table.Fragment, limit int) []Row {
	out := make([]Row, 0, capped(len(left)*len(right), limit))
	for _, l := range left {
		for _, f := range right {
			if limit > 0 && len(out) == limit {
				return out
			}
			row := make(Row, len(l), len(l)+1)
			copy(row, l)
			out = append(out, append(row, f))
		}
	}
	return out
}

// Utterances returns the utterance fragments of r.
func (r Row) Utterances() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Utterance
	}
	return out
}

// Tags returns the tag fragments of r.
func (r Row) Tags() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Tag
	}
	return out
}

func capped(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
