package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/uttergen/pkg/uttergen"
	"github.com/cognicore/uttergen/pkg/uttergen/amr"
	"github.com/cognicore/uttergen/pkg/uttergen/config"
	"github.com/cognicore/uttergen/pkg/uttergen/metrics"
	"github.com/cognicore/uttergen/pkg/uttergen/normalize"
	"github.com/cognicore/uttergen/pkg/uttergen/store"
	"github.com/cognicore/uttergen/pkg/uttergen/store/sqlite"
)

type cli struct {
	logger  *zap.Logger
	verbose bool

	// run flags
	runFile     string
	dbPath      string
	metricsFile string
	merge       bool
	noSave      bool

	// preview flags
	limit int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "uttergen",
		Short: "Generate synthetic training utterances from entity tables",
		Long: `uttergen combines the entity tables of every combination folder of a
use case into all possible utterances, tags them with AMR codes and appends
them to utterances_<use case>.csv.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if c.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run [use case folder...]",
		Short: "Generate utterances for use case folders",
		Long: `Processes the given use case folders, or every use case listed in the
run file when no folder is given.

Examples:
  uttergen run --config main.yml
  uttergen run data/flights data/hotels --db uttergen.db`,
		RunE: c.runGenerate,
	}
	runCmd.Flags().StringVarP(&c.runFile, "config", "c", "main.yml", "Run file listing uc_path and uc_names")
	runCmd.Flags().StringVar(&c.dbPath, "db", "", "SQLite database that records runs and utterances (optional)")
	runCmd.Flags().StringVar(&c.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done (optional)")
	runCmd.Flags().BoolVar(&c.merge, "merge", false, "Combine all groups first, then enrich and write once")
	runCmd.Flags().BoolVar(&c.noSave, "no-save", false, "Do not write output files")

	previewCmd := &cobra.Command{
		Use:   "preview <use case folder> [group...]",
		Short: "Print generated utterances without writing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.runPreview,
	}
	previewCmd.Flags().IntVarP(&c.limit, "limit", "n", 20, "Maximum utterances printed per group (0 = all)")

	normalizeCmd := &cobra.Command{
		Use:   "normalize <text...>",
		Short: "Show how text is normalized",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.runNormalize,
	}

	expandCmd := &cobra.Command{
		Use:   "expand <use case folder> <tag...>",
		Short: "Expand a tag string with the use case AMR map",
		Args:  cobra.MinimumNArgs(2),
		RunE:  c.runExpand,
	}

	root.AddCommand(runCmd, previewCmd, normalizeCmd, expandCmd)
	return root
}

func (c *cli) runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var st store.Store
	if c.dbPath != "" {
		s, err := sqlite.OpenSQLite(ctx, c.dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()
		st = s
	}

	var m *metrics.Metrics
	if c.metricsFile != "" {
		m = metrics.New()
	}

	gen := uttergen.New(uttergen.Options{
		Store:   st,
		Metrics: m,
		Logger:  c.logger,
		Save:    !c.noSave,
		Merge:   c.merge,
	})

	run, err := c.resolveRun(args)
	if err != nil {
		return err
	}

	us, err := gen.Run(ctx, run)
	if err != nil {
		c.logger.Error("Generation failed", zap.Error(err))
		return err
	}

	if m != nil {
		if err := m.WriteTextfile(c.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	c.logger.Info("done", zap.Int("utterances", len(us)))
	return nil
}

// resolveRun builds the run from positional folders, or loads the run file.
func (c *cli) resolveRun(args []string) (*config.Run, error) {
	if len(args) == 0 {
		run, err := config.LoadRun(c.runFile)
		if err != nil {
			return nil, fmt.Errorf("load run file: %w", err)
		}
		return run, nil
	}
	return &config.Run{UseCases: args}, nil
}

func (c *cli) runPreview(cmd *cobra.Command, args []string) error {
	gen := uttergen.New(uttergen.Options{Logger: c.logger})
	uc, err := gen.Open(args[0])
	if err != nil {
		return err
	}

	groups := args[1:]
	if len(groups) == 0 {
		groups, err = uc.Groups()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, group := range groups {
		res, err := uc.Combine(cmd.Context(), group)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s: %d tables, %d combinations, %d dropped rows\n",
			group, len(res.Tables), res.Combinations, res.Dropped)
		for i, u := range res.Utterances {
			if c.limit > 0 && i >= c.limit {
				fmt.Fprintf(out, "... %d more\n", len(res.Utterances)-i)
				break
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", u.Utterance, u.Tag, strings.Join(u.AMR, ","))
		}
	}
	return nil
}

func (c *cli) runNormalize(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), normalize.Text(strings.Join(args, " ")))
	return nil
}

func (c *cli) runExpand(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.LoadDir(args[0])
	if err != nil {
		return err
	}
	tag := normalize.Text(strings.Join(args[1:], " "))
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(amr.Expand(tag, cfg.AMR), " "))
	return nil
}
