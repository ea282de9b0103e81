// Package cmd wires the CLI surface onto the orchestrator.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/testpack/testpack"
	"github.com/testpack/testpack/internal/config"
)

var flags struct {
	pkg             string
	quiet           bool
	verbose         bool
	failFast        bool
	shard           string
	optimizeCovPct  float64
	optimizeRuntime int64
	optimizeCount   int
}

var rootCmd = &cobra.Command{
	Use:           "testpack [pattern]",
	Short:         "testpack — prioritised, shardable, coverage-optimized test runs",
	Long:          "Runs a package of tests in deterministic order, recently-failed first,\noptionally sharded by class or narrowed to a coverage-optimized subset.",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := resolveConfig(args)
		if err != nil {
			return exitError{code: testpack.ExitConfigError, err: err}
		}
		code, err := testpack.New(cfg).Run()
		if err != nil {
			return exitError{code: code, err: err}
		}
		if code != testpack.ExitOK {
			return exitError{code: code}
		}
		return nil
	},
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func init() {
	rootCmd.Flags().StringVar(&flags.pkg, "package", "", "package selector pattern (also positional)")
	rootCmd.Flags().BoolVar(&flags.quiet, "quiet", false, "suppress per-test progress output")
	rootCmd.Flags().BoolVar(&flags.verbose, "verbose", false, "tee test stdout/stderr in real time")
	rootCmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "abort the run on the first failure")
	rootCmd.Flags().StringVar(&flags.shard, "shard", "", "run only shard i of n, as i/n")
	rootCmd.Flags().Float64Var(&flags.optimizeCovPct, "optimize-coverage", 0, "select the quickest subset reaching this coverage fraction")
	rootCmd.Flags().Int64Var(&flags.optimizeRuntime, "optimize-runtime", 0, "select the best-covering subset within this budget (ms)")
	rootCmd.Flags().IntVar(&flags.optimizeCount, "optimize-count", 0, "select exactly this many best-covering tests")
}

// resolveConfig layers CLI flags over environment and file configuration.
func resolveConfig(args []string) (*config.Config, error) {
	cfg := config.Load()

	if flags.pkg != "" {
		cfg.Package = flags.pkg
	}
	if len(args) == 1 {
		cfg.Package = args[0]
	}
	cfg.Quiet = flags.quiet
	cfg.Verbose = flags.verbose
	cfg.FailFast = flags.failFast

	if flags.shard != "" {
		shard, err := config.ParseShard(flags.shard)
		if err != nil {
			return nil, err
		}
		cfg.Shard = shard
	}
	if flags.optimizeCovPct != 0 {
		v := flags.optimizeCovPct
		cfg.OptimizeCoverage = &v
	}
	if flags.optimizeRuntime != 0 {
		v := flags.optimizeRuntime
		cfg.OptimizeRuntimeMS = &v
	}
	if flags.optimizeCount != 0 {
		v := flags.optimizeCount
		cfg.OptimizeCount = &v
	}
	return cfg, nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if ee, ok := err.(exitError); ok {
			if ee.err != nil {
				log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false}).Error(ee.err.Error())
			}
			return ee.code
		}
		log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false}).Error(err.Error())
		return testpack.ExitConfigError
	}
	return testpack.ExitOK
}
