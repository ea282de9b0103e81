package output

import (
	"fmt"
	"io"
	"time"

	"github.com/testpack/testpack/internal/streams"
	"github.com/testpack/testpack/pkg/framework"
)

const (
	tickMark  = "✔"
	crossMark = "✘"

	saveCursor       = "\x1b[s"
	eraseLineRestore = "\x1b[2K\x1b[u"
)

// Options configures a Listener.
type Options struct {
	FailFast bool
	Verbose  bool
	Quiet    bool

	// TotalCount is the number of tests expected; shown in the progress
	// counter.
	TotalCount int
	// Width is the terminal width; zero disables right-alignment padding.
	Width int
	// Out receives all progress output. This must be the real terminal
	// stream, not the captured one.
	Out io.Writer
	// TestPackages are the package prefixes considered "ours" when
	// hunting the suspect frame of a failure.
	TestPackages []string
	// OnAbort is invoked once when fail-fast triggers.
	OnAbort func()
}

// Listener is the run listener that renders user-facing progress. Events
// arrive serially on the runner's goroutine, so no locking is needed.
type Listener struct {
	opts Options

	capture           *streams.Capture
	current           framework.Description
	currentStart      time.Time
	placeholderActive bool

	runCount              int
	failureCount          int
	ignoredCount          int
	assumptionFailedCount int
	currentTestDidFail    bool
	aborted               bool

	durations   map[string]int64
	stdOutStore map[string]string
	stdErrStore map[string]string
}

// NewListener creates a listener writing progress to opts.Out.
func NewListener(opts Options) *Listener {
	return &Listener{
		opts:        opts,
		durations:   make(map[string]int64),
		stdOutStore: make(map[string]string),
		stdErrStore: make(map[string]string),
	}
}

// RunStarted resets per-test state. When the listener was built without a
// total, the runner's count is adopted.
func (l *Listener) RunStarted(totalTests int) {
	if l.opts.TotalCount == 0 {
		l.opts.TotalCount = totalTests
	}
	l.currentTestDidFail = false
}

// TestStarted prints the placeholder line and begins stream capture.
// Output is teed through in real time only in verbose mode.
func (l *Listener) TestStarted(d framework.Description) {
	if !l.opts.Quiet {
		l.printPlaceholder(d)
	}

	l.current = d
	l.currentStart = time.Now()
	l.currentTestDidFail = false

	capture, err := streams.GrabTo(l.opts.Verbose && !l.opts.Quiet, d.ID(), l.opts.Out, l.opts.Out)
	if err != nil {
		// Nested capture is a programming bug, not a test outcome.
		panic(err)
	}
	l.capture = capture
}

// TestFailure marks the current test failed and, under fail-fast, aborts
// the run after reporting the failure.
func (l *Listener) TestFailure(f framework.Failure) {
	l.currentTestDidFail = true
	l.failureCount++

	if l.opts.FailFast && !l.aborted {
		l.aborted = true
		fmt.Fprint(l.opts.Out, "\n\n*** TESTS ABORTED\n")
		fmt.Fprint(l.opts.Out, Expand("*** @|bg_red Fail-fast triggered by test failure:|@\n"))
		l.reportFailure(f)
		if l.opts.OnAbort != nil {
			l.opts.OnAbort()
		}
	}
}

// TestAssumptionFailure counts the event and treats the test as a skip,
// not a failure.
func (l *Listener) TestAssumptionFailure(framework.Failure) {
	l.assumptionFailedCount++
	l.currentTestDidFail = false
}

// TestIgnored counts an ignored test. Ignored tests have no capture
// cycle.
func (l *Listener) TestIgnored(framework.Description) {
	l.ignoredCount++
}

// TestFinished stores the captured streams, restores the real ones, and
// replaces the placeholder with the test's verdict line.
func (l *Listener) TestFinished(d framework.Description) {
	elapsed := time.Since(l.currentStart)
	l.durations[d.ID()] = elapsed.Milliseconds()

	var stdOut, stdErr string
	if l.capture != nil {
		l.capture.Restore()
		stdOut = l.capture.StdOut()
		stdErr = l.capture.StdErr()
		l.stdOutStore[d.Class] = stdOut
		l.stdErrStore[d.Class] = stdErr
		l.capture = nil
	}

	if !l.currentTestDidFail {
		l.runCount++
		if !l.opts.Quiet {
			l.replacePlaceholder(d, true, elapsed)
		}
	} else {
		// Failing tests are named even in quiet mode.
		l.replacePlaceholder(d, false, elapsed)
	}
	l.placeholderActive = false

	if !l.opts.Quiet && !l.opts.Verbose {
		if stdOut != "" {
			fmt.Fprint(l.opts.Out, "    STDOUT:\n")
			fmt.Fprint(l.opts.Out, stdOut)
		}
		if stdErr != "" {
			fmt.Fprint(l.opts.Out, "\n    STDERR:\n")
			fmt.Fprint(l.opts.Out, stdErr)
		}
	}
}

// RunFinished prints the completion banner, the tinted summary line and,
// unless quiet, the failure listing.
func (l *Listener) RunFinished(result *framework.Result) {
	passed := l.runCount - l.assumptionFailedCount
	if passed < 0 {
		passed = 0
	}

	fmt.Fprint(l.opts.Out, "\n\n*** TESTS COMPLETE\n")

	passedStatement := "%d passed"
	if passed > 0 && l.failureCount == 0 {
		passedStatement = "@|bg_green %d passed|@"
	}
	failedStatement := "0 failed"
	if l.failureCount > 0 {
		failedStatement = "@|bg_red %d failed|@"
	}
	var ignoredStatement string
	switch {
	case l.ignoredCount > 0 && l.ignoredCount > passed:
		ignoredStatement = "@|bg_red %d ignored|@"
	case l.ignoredCount > 0:
		ignoredStatement = "@|bg_yellow %d ignored|@"
	default:
		ignoredStatement = "%d ignored"
	}
	assumptionStatement := ""
	if l.assumptionFailedCount > 0 {
		assumptionStatement = ", @|blue %d assumption(s) failed|@"
	}

	line := fmt.Sprintf("*** "+passedStatement+", "+failedStatement+", "+ignoredStatement,
		passed, l.failureCount, l.ignoredCount)
	if assumptionStatement != "" {
		line += fmt.Sprintf(assumptionStatement, l.assumptionFailedCount)
	}
	fmt.Fprint(l.opts.Out, Expand(line)+"\n")

	if l.failureCount > 0 && !l.opts.Quiet {
		fmt.Fprint(l.opts.Out, "\nFailures:\n")
		for _, f := range result.Failures {
			l.reportFailure(f)
		}
	}
}

// ReadOut returns the bytes captured on stdout during the most recent
// execution of a test in the class, or an empty slice.
func (l *Listener) ReadOut(testClass string) []byte {
	return []byte(l.stdOutStore[testClass])
}

// ReadErr returns the bytes captured on stderr during the most recent
// execution of a test in the class, or an empty slice.
func (l *Listener) ReadErr(testClass string) []byte {
	return []byte(l.stdErrStore[testClass])
}

// Durations returns the observed per-test cost in milliseconds, keyed by
// test id.
func (l *Listener) Durations() map[string]int64 { return l.durations }

// Aborted reports whether fail-fast triggered.
func (l *Listener) Aborted() bool { return l.aborted }

func (l *Listener) printPlaceholder(d framework.Description) {
	fmt.Fprint(l.opts.Out, saveCursor)

	left := ">>  " + d.SimpleClass() + "." + d.Method
	right := fmt.Sprintf("[ %d/%d tests run", l.runCount, l.opts.TotalCount)
	if l.ignoredCount > 0 {
		right += fmt.Sprintf(", @|yellow %d ignored|@", l.ignoredCount)
	}
	if l.failureCount > 0 {
		right += fmt.Sprintf(", @|red %d failed|@", l.failureCount)
	}
	right += " ] "

	fmt.Fprint(l.opts.Out, Expand(AlignLeftRight(left, right, l.opts.Width)))
	if l.opts.Verbose {
		// Newline so teed output lands below. Non-verbose keeps the
		// cursor on the placeholder so it can be erased on completion.
		fmt.Fprintln(l.opts.Out)
	}
	l.placeholderActive = true
}

func (l *Listener) replacePlaceholder(d framework.Description, success bool, elapsed time.Duration) {
	if l.placeholderActive && !l.opts.Verbose {
		fmt.Fprint(l.opts.Out, eraseLineRestore)
	}

	colour, symbol := "green", tickMark
	if !success {
		colour, symbol = "red", crossMark
	}
	name := abbreviate(d.SimpleClass()+"."+d.Method, 30)
	fmt.Fprint(l.opts.Out, Expandf(" @|%s %s  %s|@ @|blue (%d ms)|@\n",
		colour, symbol, name, elapsed.Milliseconds()))
}

// abbreviate keeps the tail of s when it exceeds max runes.
func abbreviate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return "…" + string(runes[len(runes)-max+1:])
}
