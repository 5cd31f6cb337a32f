package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/uttergen/pkg/uttergen/amr"
	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
)

// FileName is the per use case configuration document.
const FileName = "config.yml"

// Config holds the settings for one use case folder.
// A zero MaxRecords or MaxRows disables that cap.
type Config struct {
	TagHeader     string  `yaml:"tag_header"`
	UttHeader     string  `yaml:"utt_header"`
	AMRHeader     string  `yaml:"amr_header"`
	ComHeader     string  `yaml:"com_header"`
	Sep           string  `yaml:"sep"`
	Encoding      string  `yaml:"encoding"`
	MaxRecords    int     `yaml:"max_records"`
	MaxRows       int     `yaml:"max_rows"`
	OutputDirname string  `yaml:"output_dirname"`
	AMR           amr.Map `yaml:"amr"`
}

// Default returns the configuration used when a folder has no config.yml.
func Default() Config {
	return Config{
		TagHeader:  "tag",
		UttHeader:  "utterance",
		AMRHeader:  "amr",
		ComHeader:  "combination_id",
		Sep:        ";",
		Encoding:   "utf8",
		MaxRecords: 5000,
		MaxRows:    50,
		AMR:        amr.Map{},
	}
}

// Load reads a configuration document. Keys missing from the document keep
// their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if cfg.AMR == nil {
		cfg.AMR = amr.Map{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads config.yml from dir, falling back to Default when the file
// does not exist. The boolean reports whether a file was found.
func LoadDir(dir string) (Config, bool, error) {
	path := filepath.Join(dir, FileName)
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Validate checks the fields that later stages rely on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.UttHeader) == "" || strings.TrimSpace(c.TagHeader) == "" {
		return fmt.Errorf("%w: utt_header and tag_header are required", internalerr.ErrInvalidConfig)
	}
	if strings.EqualFold(strings.TrimSpace(c.UttHeader), strings.TrimSpace(c.TagHeader)) {
		return fmt.Errorf("%w: utt_header and tag_header must differ", internalerr.ErrInvalidConfig)
	}
	if utf8.RuneCountInString(c.Sep) != 1 {
		return fmt.Errorf("%w: sep must be a single character, got %q", internalerr.ErrInvalidConfig, c.Sep)
	}
	if c.MaxRecords < 0 || c.MaxRows < 0 {
		return fmt.Errorf("%w: max_records and max_rows must not be negative", internalerr.ErrInvalidConfig)
	}
	if _, err := c.TextEncoding(); err != nil {
		return err
	}
	return nil
}

// Comma returns the field delimiter as a rune.
func (c Config) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Sep)
	return r
}

// TextEncoding resolves the configured encoding name. WHATWG labels such as
// "utf8" or "latin1" are tried first, then IANA names.
func (c Config) TextEncoding() (encoding.Encoding, error) {
	name := strings.TrimSpace(c.Encoding)
	if name == "" {
		name = "utf8"
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", internalerr.ErrInvalidConfig, c.Encoding)
	}
	return enc, nil
}

// Run lists the use cases processed by one invocation.
type Run struct {
	UseCasePath string   `yaml:"uc_path"`
	UseCases    []string `yaml:"uc_names"`
}

// LoadRun loads the top-level run file.
func LoadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return &run, nil
}

// Folders returns the use case folder paths in the order they were listed.
func (r *Run) Folders() []string {
	folders := make([]string, 0, len(r.UseCases))
	for _, name := range r.UseCases {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		folders = append(folders, filepath.Join(r.UseCasePath, name))
	}
	return folders
}
