package utterance

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/uttergen/pkg/uttergen/amr"
	"github.com/cognicore/uttergen/pkg/uttergen/combine"
	"github.com/cognicore/uttergen/pkg/uttergen/table"
)

func twoTableRows() []combine.Row {
	return combine.Fold([][]table.Fragment{
		{{Utterance: "a", Tag: "x"}, {Utterance: "b", Tag: "y"}},
		{{Utterance: "1", Tag: "p"}},
	}, 0)
}

func TestBuildTwoTableExample(t *testing.T) {
	got := Build(twoTableRows(), "group1", amr.Map{"p": "CODE_P"}, 5000)

	want := []Utterance{
		{Utterance: "a 1", Tag: "x p", AMR: []string{"CODE_P"}, CombinationID: "group1"},
		{Utterance: "b 1", Tag: "y p", AMR: []string{"CODE_P"}, CombinationID: "group1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinTruncates(t *testing.T) {
	got := Join(twoTableRows(), "g", 1)
	if len(got) != 1 || got[0].Utterance != "a 1" {
		t.Errorf("expected only the first row, got %+v", got)
	}

	got = Join(twoTableRows(), "g", 0)
	if len(got) != 2 {
		t.Errorf("zero cap should keep all rows, got %d", len(got))
	}
}

func TestJoinLeavesTextRaw(t *testing.T) {
	rows := []combine.Row{{{Utterance: "Quiero", Tag: "Q"}, {Utterance: "¡Volar!", Tag: "V"}}}
	got := Join(rows, "g", 0)
	if got[0].Utterance != "Quiero ¡Volar!" || got[0].Tag != "Q V" {
		t.Errorf("Join should not normalize, got %+v", got[0])
	}
	if got[0].AMR != nil {
		t.Errorf("Join should not expand AMR, got %v", got[0].AMR)
	}
}

func TestBuildNormalizesBeforeExpanding(t *testing.T) {
	rows := []combine.Row{
		{{Utterance: "  Quiero   VOLAR ", Tag: "S"}, {Utterance: "a Bogotá!", Tag: "D  s"}},
	}
	m := amr.Map{"s": "SALUDO", "d": "DESTINO", "S": "UPPER"}

	got := Build(rows, "vuelos", m, 0)
	want := []Utterance{{
		Utterance:     "quiero volar a bogota",
		Tag:           "s d s",
		AMR:           []string{"SALUDO", "DESTINO"},
		CombinationID: "vuelos",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEmpty(t *testing.T) {
	got := Build(nil, "g", amr.Map{}, 10)
	if len(got) != 0 {
		t.Errorf("expected no utterances, got %d", len(got))
	}
}

func TestBuildUnknownCodesFiltered(t *testing.T) {
	rows := []combine.Row{{{Utterance: "hola", Tag: "z"}}}
	got := Build(rows, "g", amr.Map{}, 0)
	if len(got[0].AMR) != 0 {
		t.Errorf("expected empty AMR, got %v", got[0].AMR)
	}
}
