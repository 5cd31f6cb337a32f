package uttergen

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/uttergen/pkg/uttergen/combine"
	"github.com/cognicore/uttergen/pkg/uttergen/config"
	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
	"github.com/cognicore/uttergen/pkg/uttergen/metrics"
	"github.com/cognicore/uttergen/pkg/uttergen/output"
	"github.com/cognicore/uttergen/pkg/uttergen/store"
	"github.com/cognicore/uttergen/pkg/uttergen/table"
	"github.com/cognicore/uttergen/pkg/uttergen/utterance"
)

// Generator drives utterance generation over use case folders
type Generator struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	save    bool
	merge   bool
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// Options configures a Generator. Store, Metrics and Logger are optional.
type Options struct {
	Store   store.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// Save appends results to the use case output file.
	Save bool

	// Merge makes Run use ProductMerged instead of Product.
	Merge bool

	// Now overrides the clock used for run timestamps.
	Now func() time.Time
}

// New creates a Generator with the given dependencies
func New(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  logger,
		save:    opts.Save,
		merge:   opts.Merge,
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// UseCase is an opened use case folder with its resolved configuration
type UseCase struct {
	Name   string
	Folder string
	Config config.Config

	// Output is the file results are appended to.
	Output *output.Writer

	// Preserved is where a previous output file was moved, if there was one.
	Preserved string

	g *Generator
}

// GroupResult is the outcome of one combination sub-folder
type GroupResult struct {
	CombinationID string
	Tables        []string
	Dropped       int
	Combinations  int
	Utterances    []utterance.Utterance
}

// Open loads the configuration of a use case folder and, when saving, moves
// an existing output file out of the way.
func (g *Generator) Open(folder string) (*UseCase, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: use case folder %s", internalerr.ErrNotFound, folder)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a folder", internalerr.ErrInvalidInput, folder)
	}

	name := filepath.Base(filepath.Clean(folder))
	cfg, found, err := config.LoadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("load config for %s: %w", name, err)
	}
	if !found {
		g.logger.Info("Using default config", zap.String("use_case", name))
	}

	path := output.Path(folder, cfg.OutputDirname)
	uc := &UseCase{
		Name:   name,
		Folder: folder,
		Config: cfg,
		Output: output.NewWriter(path, cfg.Comma(), output.Columns{
			Utterance:     cfg.UttHeader,
			Tag:           cfg.TagHeader,
			AMR:           cfg.AMRHeader,
			CombinationID: cfg.ComHeader,
		}),
		g: g,
	}

	if g.save {
		renamed, err := output.Preserve(path)
		if err != nil {
			return nil, fmt.Errorf("preserve previous output %s: %w", path, err)
		}
		if renamed != "" {
			uc.Preserved = renamed
			g.logger.Info("Renamed previous output",
				zap.String("from", filepath.Base(path)),
				zap.String("to", filepath.Base(renamed)))
		}
	}

	return uc, nil
}

// Groups lists the combination sub-folders of the use case in name order.
// Hidden folders and the configured output folder are skipped.
func (uc *UseCase) Groups() ([]string, error) {
	entries, err := os.ReadDir(uc.Folder)
	if err != nil {
		return nil, err
	}

	var groups []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if uc.Config.OutputDirname != "" && name == uc.Config.OutputDirname {
			continue
		}
		groups = append(groups, name)
	}
	return groups, nil
}

// Combine builds the enriched utterances of one combination sub-folder
// without writing them anywhere.
func (uc *UseCase) Combine(ctx context.Context, group string) (GroupResult, error) {
	res, err := uc.combine(group)
	if err != nil {
		return GroupResult{}, err
	}
	utterance.Enrich(res.Utterances, uc.Config.AMR)
	return res, nil
}

// combine loads and joins a sub-folder; the utterances are not yet enriched.
func (uc *UseCase) combine(group string) (GroupResult, error) {
	cfg := uc.Config
	enc, err := cfg.TextEncoding()
	if err != nil {
		return GroupResult{}, err
	}

	tables, err := table.LoadDir(filepath.Join(uc.Folder, group), table.Options{
		Comma:     cfg.Comma(),
		Encoding:  enc,
		UttHeader: cfg.UttHeader,
		TagHeader: cfg.TagHeader,
	})
	if err != nil {
		return GroupResult{}, fmt.Errorf("load tables for %s/%s: %w", uc.Name, group, err)
	}

	p := combine.Tables(tables, combine.Options{
		MaxRows:    cfg.MaxRows,
		MaxRecords: cfg.MaxRecords,
	})
	if p.Dropped > 0 {
		uc.g.logger.Debug("Dropped incomplete rows",
			zap.String("use_case", uc.Name),
			zap.String("group", group),
			zap.Int("rows", p.Dropped))
	}

	return GroupResult{
		CombinationID: group,
		Tables:        p.Tables,
		Dropped:       p.Dropped,
		Combinations:  len(p.Rows),
		Utterances:    utterance.Join(p.Rows, group, cfg.MaxRecords),
	}, nil
}

// Product generates every combination sub-folder in turn, appending each
// group's utterances to the output as it goes. It returns all utterances
// in group order.
func (uc *UseCase) Product(ctx context.Context) ([]utterance.Utterance, error) {
	start := uc.g.now()
	groups, err := uc.Groups()
	if err != nil {
		return nil, err
	}

	runID, err := uc.beginRun(ctx, start)
	if err != nil {
		return nil, err
	}

	var all []utterance.Utterance
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		uc.g.logger.Info("Adding utterances", zap.String("use_case", uc.Name), zap.String("group", group))
		res, err := uc.Combine(ctx, group)
		if err != nil {
			return all, err
		}
		uc.g.metrics.Group(uc.Name, group, len(res.Tables), res.Dropped, res.Combinations, len(res.Utterances))

		if len(res.Utterances) == 0 {
			uc.g.logger.Warn("No utterances produced",
				zap.String("use_case", uc.Name),
				zap.String("group", group),
				zap.Int("tables", len(res.Tables)))
			continue
		}

		if err := uc.emit(ctx, runID, res.Utterances); err != nil {
			return all, err
		}
		all = append(all, res.Utterances...)
	}

	uc.g.metrics.RunDuration(uc.Name, uc.g.now().Sub(start))
	return all, nil
}

// ProductMerged combines every sub-folder first and enriches and writes the
// concatenated result once. Normalization and AMR expansion happen after
// concatenation, and row indices run across all groups.
func (uc *UseCase) ProductMerged(ctx context.Context) ([]utterance.Utterance, error) {
	start := uc.g.now()
	groups, err := uc.Groups()
	if err != nil {
		return nil, err
	}

	runID, err := uc.beginRun(ctx, start)
	if err != nil {
		return nil, err
	}

	var all []utterance.Utterance
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		uc.g.logger.Info("Entering group", zap.String("use_case", uc.Name), zap.String("group", group))
		res, err := uc.combine(group)
		if err != nil {
			return nil, err
		}
		uc.g.metrics.Group(uc.Name, group, len(res.Tables), res.Dropped, res.Combinations, len(res.Utterances))
		all = append(all, res.Utterances...)
	}

	utterance.Enrich(all, uc.Config.AMR)
	if len(all) > 0 {
		if err := uc.emit(ctx, runID, all); err != nil {
			return nil, err
		}
	}

	uc.g.metrics.RunDuration(uc.Name, uc.g.now().Sub(start))
	return all, nil
}

// beginRun registers a run with the store, if there is one.
func (uc *UseCase) beginRun(ctx context.Context, start time.Time) (string, error) {
	if uc.g.store == nil {
		return "", nil
	}

	id := ulid.MustNew(ulid.Timestamp(start), uc.g.entropy).String()
	err := uc.g.store.BeginRun(ctx, store.Run{
		ID:        id,
		UseCase:   uc.Name,
		Folder:    uc.Folder,
		StartedAt: start,
	})
	if err != nil {
		return "", fmt.Errorf("begin run for %s: %w", uc.Name, err)
	}
	return id, nil
}

// emit sends a batch to the output file and the store.
func (uc *UseCase) emit(ctx context.Context, runID string, us []utterance.Utterance) error {
	if uc.g.save {
		if err := uc.Output.Append(us); err != nil {
			return fmt.Errorf("append to %s: %w", uc.Output.Path(), err)
		}
		uc.g.logger.Info("Appended",
			zap.String("file", filepath.Base(uc.Output.Path())),
			zap.Int("rows", len(us)))
	}

	if uc.g.store != nil {
		if err := uc.g.store.AppendUtterances(ctx, runID, us); err != nil {
			return fmt.Errorf("store utterances for %s: %w", uc.Name, err)
		}
	}
	return nil
}

// Run processes every use case listed in a run file. Use cases whose folder
// does not exist are skipped with a warning.
func (g *Generator) Run(ctx context.Context, run *config.Run) ([]utterance.Utterance, error) {
	var all []utterance.Utterance
	for _, folder := range run.Folders() {
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			g.logger.Warn("Skipping missing use case", zap.String("folder", folder))
			continue
		}

		g.logger.Info("Entering use case", zap.String("folder", folder))
		uc, err := g.Open(folder)
		if err != nil {
			return all, err
		}

		var us []utterance.Utterance
		if g.merge {
			us, err = uc.ProductMerged(ctx)
		} else {
			us, err = uc.Product(ctx)
		}
		if err != nil {
			return all, err
		}

		g.logger.Info("Use case done", zap.String("use_case", uc.Name), zap.Int("utterances", len(us)))
		all = append(all, us...)
	}
	return all, nil
}
