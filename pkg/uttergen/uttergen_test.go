package uttergen

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/uttergen/pkg/uttergen/config"
	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
	"github.com/cognicore/uttergen/pkg/uttergen/metrics"
	"github.com/cognicore/uttergen/pkg/uttergen/store"
	"github.com/cognicore/uttergen/pkg/uttergen/store/memstore"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// makeUseCase lays out a use case folder:
//
//	flights/config.yml
//	flights/g1/1_greeting.csv  a/x, b/y
//	flights/g1/2_city.csv      1/p
//	flights/g2/1_only.csv      header only
//	flights/g3/1_verb.csv      Reservar/r, incomplete row
func makeUseCase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	folder := filepath.Join(root, "flights")

	writeFile(t, filepath.Join(folder, config.FileName), "amr:\n  p: CODE_P\n  r: RESERVA\n")
	writeFile(t, filepath.Join(folder, "g1", "1_greeting.csv"), "utterance;tag\na;x\nb;y\n")
	writeFile(t, filepath.Join(folder, "g1", "2_city.csv"), "utterance;tag\n1;p\n")
	writeFile(t, filepath.Join(folder, "g2", "1_only.csv"), "utterance;tag\n")
	writeFile(t, filepath.Join(folder, "g3", "1_verb.csv"), "utterance;tag\nReservar ¡ya!;r\n;r\n")
	return folder
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	r := csv.NewReader(strings.NewReader(string(data)))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestProductPerGroup(t *testing.T) {
	ctx := context.Background()
	folder := makeUseCase(t)
	st := memstore.New()
	m := metrics.New()

	g := New(Options{Store: st, Metrics: m, Save: true})
	uc, err := g.Open(folder)
	require.NoError(t, err)
	assert.Equal(t, "flights", uc.Name)
	assert.Empty(t, uc.Preserved)

	us, err := uc.Product(ctx)
	require.NoError(t, err)
	require.Len(t, us, 3)

	assert.Equal(t, "a 1", us[0].Utterance)
	assert.Equal(t, "x p", us[0].Tag)
	assert.Equal(t, []string{"CODE_P"}, us[0].AMR)
	assert.Equal(t, "g1", us[0].CombinationID)
	assert.Equal(t, "b 1", us[1].Utterance)
	assert.Equal(t, "y p", us[1].Tag)
	assert.Equal(t, "reservar ya", us[2].Utterance)
	assert.Equal(t, []string{"RESERVA"}, us[2].AMR)
	assert.Equal(t, "g3", us[2].CombinationID)

	records := readOutput(t, filepath.Join(folder, "utterances_flights.csv"))
	want := [][]string{
		{"", "utterance", "tag", "amr", "combination_id"},
		{"0", "a 1", "x p", `["CODE_P"]`, "g1"},
		{"1", "b 1", "y p", `["CODE_P"]`, "g1"},
		{"0", "reservar ya", "r", `["RESERVA"]`, "g3"},
	}
	assert.Equal(t, want, records)

	stored, err := st.ListUtterances(ctx, store.Query{UseCase: "flights"})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	runs := st.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, runs[0].ID, stored[0].RunID)
	assert.Len(t, runs[0].ID, 26)
}

func TestCombinationIDMatchesGroup(t *testing.T) {
	folder := makeUseCase(t)
	g := New(Options{})
	uc, err := g.Open(folder)
	require.NoError(t, err)

	groups, err := uc.Groups()
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2", "g3"}, groups)

	for _, group := range groups {
		res, err := uc.Combine(context.Background(), group)
		require.NoError(t, err)
		for _, u := range res.Utterances {
			assert.Equal(t, group, u.CombinationID)
		}
	}
}

func TestProductTwiceKeepsPreviousOutput(t *testing.T) {
	ctx := context.Background()
	folder := makeUseCase(t)
	out := filepath.Join(folder, "utterances_flights.csv")

	g := New(Options{Save: true})
	uc, err := g.Open(folder)
	require.NoError(t, err)
	_, err = uc.Product(ctx)
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	uc, err = g.Open(folder)
	require.NoError(t, err)
	assert.Equal(t, out+".1", uc.Preserved)
	_, err = uc.Product(ctx)
	require.NoError(t, err)

	preserved, err := os.ReadFile(out + ".1")
	require.NoError(t, err)
	assert.Equal(t, string(first), string(preserved))

	second, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "fresh file should hold one run, not a merge")

	_, err = g.Open(folder)
	require.NoError(t, err)
	_, err = os.Stat(out + ".2")
	assert.NoError(t, err)
}

func TestOpenWithoutSaveLeavesFilesAlone(t *testing.T) {
	folder := makeUseCase(t)
	out := filepath.Join(folder, "utterances_flights.csv")
	writeFile(t, out, "previous")

	g := New(Options{})
	uc, err := g.Open(folder)
	require.NoError(t, err)
	_, err = uc.Product(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	_, err = os.Stat(out + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestProductMerged(t *testing.T) {
	folder := makeUseCase(t)
	g := New(Options{Save: true})
	uc, err := g.Open(folder)
	require.NoError(t, err)

	us, err := uc.ProductMerged(context.Background())
	require.NoError(t, err)
	require.Len(t, us, 3)
	assert.Equal(t, "reservar ya", us[2].Utterance)

	records := readOutput(t, filepath.Join(folder, "utterances_flights.csv"))
	require.Len(t, records, 4)
	assert.Equal(t, "2", records[3][0], "merged output indexes across groups")
}

func TestDefaultConfigAndOutputDir(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "hotels")
	writeFile(t, filepath.Join(folder, config.FileName), "output_dirname: out\nmax_records: 2\n")
	writeFile(t, filepath.Join(folder, "g1", "a.csv"), "utterance;tag\nuno;u\ndos;d\ntres;t\n")
	writeFile(t, filepath.Join(folder, "out", "stale.csv"), "utterance;tag\nx;y\n")
	writeFile(t, filepath.Join(folder, ".git", "x.csv"), "utterance;tag\nx;y\n")

	g := New(Options{Save: true})
	uc, err := g.Open(folder)
	require.NoError(t, err)

	groups, err := uc.Groups()
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, groups)

	us, err := uc.Product(context.Background())
	require.NoError(t, err)
	assert.Len(t, us, 2)
	assert.Empty(t, us[0].AMR)

	_, err = os.Stat(filepath.Join(folder, "out", "utterances_hotels.csv"))
	assert.NoError(t, err)
}

func TestOpenMissingFolder(t *testing.T) {
	g := New(Options{})
	_, err := g.Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestBrokenTablePropagates(t *testing.T) {
	folder := makeUseCase(t)
	writeFile(t, filepath.Join(folder, "g0", "bad.csv"), "foo;bar;baz\n1;2;3\n")

	g := New(Options{Save: true})
	uc, err := g.Open(folder)
	require.NoError(t, err)

	_, err = uc.Product(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrMissingColumn)
}

func TestProductHonorsCancelledContext(t *testing.T) {
	folder := makeUseCase(t)
	g := New(Options{})
	uc, err := g.Open(folder)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = uc.Product(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSkipsMissingUseCases(t *testing.T) {
	folder := makeUseCase(t)
	run := &config.Run{
		UseCasePath: filepath.Dir(folder),
		UseCases:    []string{"missing", "flights"},
	}

	st := memstore.New()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	g := New(Options{Store: st, Now: func() time.Time { return fixed }})

	us, err := g.Run(context.Background(), run)
	require.NoError(t, err)
	assert.Len(t, us, 3)

	runs := st.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "flights", runs[0].UseCase)
	assert.True(t, runs[0].StartedAt.Equal(fixed))
}

func TestRunMerged(t *testing.T) {
	folder := makeUseCase(t)
	run := &config.Run{UseCasePath: filepath.Dir(folder), UseCases: []string{"flights"}}

	g := New(Options{Merge: true})
	us, err := g.Run(context.Background(), run)
	require.NoError(t, err)
	assert.Len(t, us, 3)
}
