package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syssam/hubgen/compiler"
	"github.com/syssam/hubgen/compiler/gen"
	"github.com/syssam/hubgen/config"
)

// app holds the global flags.
type app struct {
	config      string
	schemaDir   string
	output      string
	json        bool
	verbose     bool
	metricsFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "hubgen",
		Short: "Generate data-access artifacts from entity schemas",
		Long: `Generate Go, TypeScript and Python models, GraphQL schemas, resolver
mapping templates and infrastructure constructs from entity schema documents.

Settings are read from hubgen.yaml in the working directory unless --config
is given. Running hubgen without a subcommand generates.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.generate(cmd, false)
		},
	}
	f := root.PersistentFlags()
	f.StringVarP(&a.config, "config", "c", "", "path to the project file (default ./"+config.DefaultFile+")")
	f.StringVar(&a.schemaDir, "schema", "", "schema directory, overrides the project file")
	f.StringVarP(&a.output, "output", "o", "", "output directory, overrides the project file")
	f.BoolVar(&a.json, "json", false, "print the report as JSON")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log progress with a development logger")
	f.StringVar(&a.metricsFile, "metrics-file", "", "write run metrics in textfile-collector format")

	root.AddCommand(
		&cobra.Command{
			Use:   "generate",
			Short: "Generate all enabled targets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.generate(cmd, false)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Report generated files that are out of date without writing",
			Long: `Check renders every target and compares the result with the output
directory. It exits non-zero when a file would change or be removed.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.generate(cmd, true)
			},
		},
		newWatchCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "hubgen %s (commit: %s)\n", version, commit)
			},
		},
	)
	return root
}

// logger builds the run logger: development output with --verbose,
// production output at warn level otherwise.
func (a *app) logger() (*zap.Logger, error) {
	if a.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// load builds the configuration from the project file and the flags.
func (a *app) load(log *zap.Logger, extra ...gen.Option) (*gen.Config, error) {
	f, err := config.Load(a.config)
	if err != nil {
		return nil, err
	}
	opts := append([]gen.Option{gen.WithLogger(log)}, extra...)
	if a.schemaDir != "" {
		opts = append(opts, gen.WithSchemaDir(a.schemaDir))
	}
	if a.output != "" {
		opts = append(opts, gen.WithOutput(a.output))
	}
	return f.Config(opts...)
}

func (a *app) generate(cmd *cobra.Command, check bool) error {
	log, err := a.logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	report, err := a.run(cmd.Context(), log, cmd.OutOrStdout(), gen.WithCheck(check))
	if err != nil {
		return err
	}
	if code := report.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// run performs one generation with a fresh configuration and metrics
// registry, and prints its report.
func (a *app) run(ctx context.Context, log *zap.Logger, w io.Writer, opts ...gen.Option) (*gen.Report, error) {
	reg := prometheus.NewRegistry()
	cfg, err := a.load(log, append(opts, gen.WithRegisterer(reg))...)
	if err != nil {
		return nil, err
	}
	report, err := compiler.Generate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, reg); err != nil {
			return nil, fmt.Errorf("write metrics: %w", err)
		}
	}
	if a.json {
		b, err := report.JSON()
		if err != nil {
			return nil, err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return report, err
	}
	printReport(w, report, a.verbose || cfg.Check)
	return report, nil
}
