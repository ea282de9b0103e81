// Package testpack orchestrates a test run: it resolves a package
// selector into a sequenced request, optionally narrows it to a
// coverage-optimized subset, executes it with the colourised run
// listener attached, and folds the results back into the persisted
// coverage repository.
package testpack

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/testpack/testpack/internal/config"
	"github.com/testpack/testpack/internal/output"
	"github.com/testpack/testpack/pkg/coverage"
	"github.com/testpack/testpack/pkg/framework"
	"github.com/testpack/testpack/pkg/optimize"
	"github.com/testpack/testpack/pkg/sequence"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitTestFailure = 1
	ExitConfigError = 2
)

// TestPackage is one configured invocation of the runner.
type TestPackage struct {
	cfg      *config.Config
	registry *framework.Registry
	out      io.Writer
	log      *log.Logger
}

// Option customises a TestPackage.
type Option func(*TestPackage)

// WithRegistry substitutes the test-class registry. Defaults to the
// process-wide registry populated by framework.Register.
func WithRegistry(r *framework.Registry) Option {
	return func(tp *TestPackage) { tp.registry = r }
}

// WithOutput redirects progress output, which otherwise goes to the
// process stdout.
func WithOutput(w io.Writer) Option {
	return func(tp *TestPackage) { tp.out = w }
}

// WithLogger substitutes the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(tp *TestPackage) { tp.log = l }
}

// New creates a TestPackage over cfg.
func New(cfg *config.Config, opts ...Option) *TestPackage {
	tp := &TestPackage{
		cfg:      cfg,
		registry: framework.DefaultRegistry(),
		out:      os.Stdout,
		log:      log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false}),
	}
	for _, opt := range opts {
		opt(tp)
	}
	return tp
}

// Run executes the configured test run and returns the process exit
// code. A non-nil error accompanies configuration and store-integrity
// failures, which never start a run.
func (tp *TestPackage) Run() (int, error) {
	if err := tp.cfg.Validate(); err != nil {
		return ExitConfigError, err
	}

	repo, err := coverage.Load(tp.cfg.StoreDir)
	if err != nil {
		return ExitConfigError, err
	}

	request, err := tp.sequence(repo)
	if err != nil {
		return ExitConfigError, err
	}
	if request.TestCount() == 0 {
		tp.log.Warn("No test classes match the package selector", "package", tp.cfg.Package)
	}

	request = tp.optimizer(repo).FilterRequest(request)

	width := 0
	if f, ok := tp.out.(*os.File); ok {
		width = output.TerminalWidth(f)
	}

	notifier := framework.NewNotifier()
	listener := output.NewListener(output.Options{
		FailFast:     tp.cfg.FailFast,
		Verbose:      tp.cfg.Verbose,
		Quiet:        tp.cfg.Quiet,
		TotalCount:   request.TestCount(),
		Width:        width,
		Out:          tp.out,
		TestPackages: tp.cfg.TestPackages,
		OnAbort:      notifier.PleaseStop,
	})
	notifier.AddListener(listener)

	result := framework.Run(request, notifier)

	tp.persist(repo, result, listener)

	if result.FailureCount > 0 {
		io.WriteString(tp.out, output.Expand("\n*** @|bg_red FAILED|@\n"))
		return ExitTestFailure, nil
	}
	io.WriteString(tp.out, output.Expand("\n*** @|bg_green OK|@\n"))
	return ExitOK, nil
}

func (tp *TestPackage) sequence(repo *coverage.Repository) (*framework.Request, error) {
	var seq *sequence.Sequencer
	if s := tp.cfg.Shard; s != nil {
		var err error
		seq, err = sequence.NewShardedSequencer(tp.registry, s.Index, s.Total)
		if err != nil {
			return nil, err
		}
	} else {
		seq = sequence.NewSequencer(tp.registry)
	}
	return seq.SequenceWithHistory(repo.FailureHistory(), tp.cfg.Package)
}

func (tp *TestPackage) optimizer(repo *coverage.Repository) *optimize.Optimizer {
	opt := optimize.New(repo, tp.log, tp.out)
	switch {
	case tp.cfg.OptimizeCoverage != nil:
		opt.WithTargetCoverage(*tp.cfg.OptimizeCoverage)
	case tp.cfg.OptimizeRuntimeMS != nil:
		opt.WithTargetCost(*tp.cfg.OptimizeRuntimeMS)
	case tp.cfg.OptimizeCount != nil:
		opt.WithTargetTestCount(*tp.cfg.OptimizeCount)
	}
	return opt
}

// persist folds the run's outcomes back into the repository: failure
// history ages by one run and resets for the just-failed tests, and
// observed costs replace the stored ones.
func (tp *TestPackage) persist(repo *coverage.Repository, result *framework.Result, listener *output.Listener) {
	failed := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failed = append(failed, f.Description.ID())
	}
	repo.RecordRun(failed)
	for id, ms := range listener.Durations() {
		repo.SetCost(id, ms)
	}

	if err := repo.Save(tp.cfg.StoreDir); err != nil {
		tp.log.Warn("Could not persist coverage store", "err", err)
	}
}
