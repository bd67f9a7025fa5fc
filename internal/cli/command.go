// Package cli implements the folderstat command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/folderstat/internal/config"
	"github.com/idelchi/folderstat/internal/folderstat"
	"github.com/idelchi/folderstat/internal/integration"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// flags holds the command-line overrides. Only flags that were set on the
// command line replace configured values.
type flags struct {
	config  string
	verbose bool
	output  string

	noDuration bool
	maxFiles   int64
	maxDepth   int
	workers    int
	batchSize  int
	noSkip     bool
	noParallel bool
	noCache    bool

	init bool
	addr string
}

// Execute runs the CLI with the process arguments. SIGINT and SIGTERM cancel
// a running analysis; a cancelled analysis still prints its partial results.
func (c CLI) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.Command().ExecuteContext(ctx)
}

// Command builds the command tree.
func (c CLI) Command() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "folderstat [path]",
		Short: "Summarize a folder by file category, size and media duration",
		Long: heredoc.Doc(`
			folderstat analyzes a directory tree and reports file counts and sizes
			per category (video, audio, document, image, code, archive, other).

			Media durations are measured with ffprobe. Categories with more than
			1000 media files are estimated from a random sample.

			Positional Arguments:
			  path    Directory to analyze. Defaults to the current directory.

			Settings are read from the optional --config file and FOLDERSTAT_*
			environment variables (e.g. FOLDERSTAT_ANALYSIS_WORKERS=8); flags win.

			The '--init' flag prints a zsh integration script that pipes the
			category breakdown into 'fzf'.
		`),
		Version:       c.version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.init {
				rendered, err := integration.Render()
				if err != nil {
					return fmt.Errorf("rendering integration script: %w", err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), rendered)

				return nil
			}

			cfg, err := load(cmd.Flags(), f)
			if err != nil {
				return err
			}

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return analyze(cmd.Context(), path, cfg, f.verbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	persistent := root.PersistentFlags()
	persistent.StringVarP(&f.config, "config", "c", "", "Path to a YAML config file")
	persistent.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose logging")
	persistent.BoolVar(&f.noDuration, "no-duration", false, "Skip media duration measurement")
	persistent.Int64Var(&f.maxFiles, "max-files", folderstat.DefaultMaxFiles, "Maximum files to scan (0=unlimited)")
	persistent.IntVar(&f.maxDepth, "max-depth", folderstat.DefaultMaxDepth, "Maximum traversal depth (0=unlimited)")
	persistent.IntVarP(&f.workers, "workers", "w", folderstat.DefaultWorkers(), "Worker goroutines")
	persistent.IntVar(&f.batchSize, "batch-size", folderstat.DefaultBatchSize, "Files per size/classify batch")
	persistent.BoolVar(&f.noSkip, "no-skip", false, "Do not skip system and build directories")
	persistent.BoolVar(&f.noParallel, "no-parallel", false, "Scan subtrees sequentially")
	persistent.BoolVar(&f.noCache, "no-cache", false, "Ignore and do not store cached results")
	persistent.SortFlags = false

	local := root.Flags()
	local.StringVarP(&f.output, "output", "o", "table", "Output format: json or table")
	local.BoolVarP(&f.init, "init", "i", false, "Output init script for shell usage")
	local.SortFlags = false

	root.AddCommand(c.serveCommand(&f))

	return root
}

func (c CLI) serveCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Long: heredoc.Doc(`
			serve exposes the analyzer over HTTP:

			  POST /api/analyze    start an analysis ({"folder_path": "..."})
			  GET  /api/progress   poll the current analysis
			  POST /api/cancel     cancel the current analysis
			  GET  /api/health     ffprobe availability
			  GET  /metrics        Prometheus metrics

			Only one analysis runs at a time.
		`),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd.Flags(), *f)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = f.addr
			}

			return serve(cmd.Context(), cfg, f.verbose, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")

	return cmd
}

// load reads the configuration and applies the flags that were set.
func load(set *pflag.FlagSet, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}

	if set.Changed("output") {
		cfg.Output = f.output
	}

	if set.Changed("no-duration") {
		cfg.Analysis.CalculateDurations = !f.noDuration
	}

	if set.Changed("max-files") {
		cfg.Analysis.MaxFiles = f.maxFiles
	}

	if set.Changed("max-depth") {
		cfg.Analysis.MaxDepth = f.maxDepth
	}

	if set.Changed("workers") {
		cfg.Analysis.Workers = f.workers
	}

	if set.Changed("batch-size") {
		cfg.Analysis.BatchSize = f.batchSize
	}

	if set.Changed("no-skip") {
		cfg.Prune.SkipSystemDirs = !f.noSkip
	}

	if set.Changed("no-parallel") {
		cfg.Analysis.Parallel = !f.noParallel
	}

	if set.Changed("no-cache") {
		cfg.Cache.Enabled = !f.noCache
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
