// Package output writes enriched utterances to the per use case CSV file.
package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cognicore/uttergen/pkg/uttergen/utterance"
)

// Path returns the output file of a use case folder: utterances_<name>.csv,
// placed in dirname under the folder when dirname is set.
func Path(folder, dirname string) string {
	name := fmt.Sprintf("utterances_%s.csv", filepath.Base(filepath.Clean(folder)))
	if dirname != "" {
		return filepath.Join(folder, dirname, name)
	}
	return filepath.Join(folder, name)
}

// Preserve moves an existing file at path out of the way by renaming it to
// path.N, using the first N >= 1 that does not exist. It returns the new
// name, or "" when there was nothing at path.
func Preserve(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	for n := 1; ; n++ {
		candidate := path + "." + strconv.Itoa(n)
		_, err := os.Lstat(candidate)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if err := os.Rename(path, candidate); err != nil {
			return "", err
		}
		return candidate, nil
	}
}

// Columns names the output header fields.
type Columns struct {
	Utterance     string
	Tag           string
	AMR           string
	CombinationID string
}

// Writer appends utterances to one CSV file. The header is written only
// when the file is empty; the first column is the row index within each
// appended batch.
type Writer struct {
	path  string
	comma rune
	cols  Columns
}

// NewWriter creates a writer for path. comma 0 means ','.
func NewWriter(path string, comma rune, cols Columns) *Writer {
	if comma == 0 {
		comma = ','
	}
	return &Writer{path: path, comma: comma, cols: cols}
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Append writes us to the end of the file, creating it (and its directory)
// when needed.
func (w *Writer) Append(us []utterance.Utterance) (err error) {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	cw.Comma = w.comma

	if info.Size() == 0 {
		header := []string{"", w.cols.Utterance, w.cols.Tag, w.cols.AMR, w.cols.CombinationID}
		if err := cw.Write(header); err != nil {
			return err
		}
	}

	for i, u := range us {
		codes, err := encodeAMR(u.AMR)
		if err != nil {
			return err
		}
		rec := []string{strconv.Itoa(i), u.Utterance, u.Tag, codes, u.CombinationID}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func encodeAMR(codes []string) (string, error) {
	if len(codes) == 0 {
		return "[]", nil
	}
	buf, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
