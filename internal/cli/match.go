package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/engine"
	"github.com/oncomatch/oncomatch/internal/querycompile"
	"github.com/oncomatch/oncomatch/internal/store"
	"github.com/oncomatch/oncomatch/internal/transform"
)

// matchOptions holds the flags of the match command.
type matchOptions struct {
	DBPath        string
	ConfigPath    string
	MappingPath   string
	Protocols     []string
	SampleIDs     []string
	MatchOnClosed   bool
	MatchOnDeceased bool
	Lenient         bool
	Workers         int
	TrialTimeout    time.Duration
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &matchOptions{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run a batch match",
		Long: `Run a batch match of loaded patient records against loaded trials.

Trials closed to accrual are skipped unless --match-on-closed is set.
The run always prints a manifest of evaluated, matched, and failed
trials; per-trial failures never abort the batch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(rootOpts, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "oncomatch.db", "store database path")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "matching configuration file (required)")
	cmd.Flags().StringVar(&opts.MappingPath, "mapping", "", "external vocabulary mapping file")
	cmd.Flags().StringArrayVar(&opts.Protocols, "protocol", nil, "restrict to a trial protocol (repeatable)")
	cmd.Flags().StringArrayVar(&opts.SampleIDs, "sample-id", nil, "restrict to a clinical record (repeatable)")
	cmd.Flags().BoolVar(&opts.MatchOnClosed, "match-on-closed", false, "bypass the accrual status gate")
	cmd.Flags().BoolVar(&opts.MatchOnDeceased, "match-on-deceased", false, "bypass the clinical vital status gate")
	cmd.Flags().BoolVar(&opts.Lenient, "lenient", false, "treat unmapped criterion keys as not applicable")
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "concurrent trial lookups")
	cmd.Flags().DurationVar(&opts.TrialTimeout, "trial-timeout", engine.DefaultTrialTimeout, "per-trial pipeline deadline")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runMatch(rootOpts *RootOptions, cmd *cobra.Command, opts *matchOptions) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = formatter.Error("CONFIG_INVALID", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load configuration", err)
	}

	var mapping config.ExternalMapping
	if opts.MappingPath != "" {
		mapping, err = config.LoadExternalMapping(opts.MappingPath)
		if err != nil {
			_ = formatter.Error("MAPPING_INVALID", err.Error(), nil)
			return WrapExitError(ExitCommandError, "load external mapping", err)
		}
	}

	s, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error("STORE_OPEN_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer s.Close()

	if err := s.EnsureIndexes(cmd.Context(), cfg.Indices); err != nil {
		_ = formatter.Error("STORE_INDEX_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "ensure indexes", err)
	}

	policy := querycompile.Strict
	if opts.Lenient {
		policy = querycompile.Lenient
	}

	registry := transform.NewRegistry(engine.SystemClock(), mapping)
	eng := engine.New(s, cfg, registry,
		engine.WithWorkers(opts.Workers),
		engine.WithTrialTimeout(opts.TrialTimeout),
		engine.WithPolicy(policy),
		engine.WithLogger(newLogger(rootOpts.Verbose)),
	)

	result, err := eng.Run(cmd.Context(), engine.RunOptions{
		Protocols:       opts.Protocols,
		SampleIDs:       opts.SampleIDs,
		MatchOnClosed:   opts.MatchOnClosed,
		MatchOnDeceased: opts.MatchOnDeceased,
	})
	if err != nil {
		_ = formatter.Error("MATCH_FAILED", err.Error(), nil)
		return WrapExitError(ExitFailure, "batch match", err)
	}

	return outputMatchResult(formatter, result)
}

// newLogger builds the slog logger for a run. Diagnostics go to stderr
// so JSON output on stdout stays clean.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func outputMatchResult(formatter *OutputFormatter, result *engine.RunResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "run %s\n", result.RunID)
	fmt.Fprintf(w, "evaluated %d, matched %d, failed %d\n",
		len(result.Manifest.Evaluated), len(result.Manifest.Matched), len(result.Manifest.Failed))
	for _, f := range result.Manifest.Failed {
		fmt.Fprintf(w, "  failed %s [%s] %s\n", f.Protocol, f.Code, f.Message)
	}
	for _, m := range result.Matches {
		fmt.Fprintf(w, "%s  patient=%s  reason=%s  sort=%v\n", m.TrialID, m.PatientID, m.Reason, m.Scores)
	}
	return nil
}
