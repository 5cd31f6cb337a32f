// Package utterance turns combination rows into enriched training utterances.
package utterance

import (
	"strings"

	"github.com/cognicore/uttergen/pkg/uttergen/amr"
	"github.com/cognicore/uttergen/pkg/uttergen/combine"
	"github.com/cognicore/uttergen/pkg/uttergen/normalize"
)

// Utterance is one generated training example.
type Utterance struct {
	Utterance     string
	Tag           string
	AMR           []string
	CombinationID string
}

// Join concatenates the fragments of each row: utterances with utterances,
// tags with tags, single-space separated and in table order. Every result
// carries combinationID. At most maxRecords rows are joined (0 = all).
func Join(rows []combine.Row, combinationID string, maxRecords int) []Utterance {
	if maxRecords > 0 && len(rows) > maxRecords {
		rows = rows[:maxRecords]
	}

	out := make([]Utterance, len(rows))
	for i, r := range rows {
		out[i] = Utterance{
			Utterance:     strings.Join(r.Utterances(), " "),
			Tag:           strings.Join(r.Tags(), " "),
			CombinationID: combinationID,
		}
	}
	return out
}

// Enrich normalizes utterance and tag text in place and derives the AMR
// codes from the normalized tag.
func Enrich(us []Utterance, m amr.Map) {
	for i := range us {
		us[i].Utterance = normalize.Text(us[i].Utterance)
		us[i].Tag = normalize.Text(us[i].Tag)
		us[i].AMR = amr.Expand(us[i].Tag, m)
	}
}

// Build joins and enriches the rows of one combination sub-folder.
func Build(rows []combine.Row, combinationID string, m amr.Map, maxRecords int) []Utterance {
	us := Join(rows, combinationID, maxRecords)
	Enrich(us, m)
	return us
}
