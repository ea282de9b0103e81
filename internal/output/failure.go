package output

import (
	"fmt"
	"path"
	"runtime"
	"strings"

	"github.com/testpack/testpack/pkg/framework"
)

// reportFailure prints one failure: the offending description, the error
// type and message, the failing frame, any distinct root cause, and the
// deepest frame that belongs to the configured test packages.
func (l *Listener) reportFailure(f framework.Failure) {
	fmt.Fprint(l.opts.Out, Expandf("    @|red %s|@:\n", f.Description.ID()))
	fmt.Fprint(l.opts.Out, Expandf("      @|yellow %s: %s|@\n",
		simpleTypeName(f.Err), indentNewlines(f.Err.Error())))

	root := f.RootCause()
	if len(f.Frames) > 0 {
		fmt.Fprintf(l.opts.Out, "             At %s\n", frameString(f.Frames[0]))
	}
	if root != f.Err {
		fmt.Fprint(l.opts.Out, Expandf("               Root cause: @|yellow %s: %s|@\n",
			simpleTypeName(root), indentNewlines(root.Error())))
		if len(f.Frames) > 0 {
			fmt.Fprintf(l.opts.Out, "             At %s\n", frameString(f.Frames[0]))
		}
	}

	if suspect, ok := suspectFrame(f.Frames, l.opts.TestPackages); ok {
		fmt.Fprintf(l.opts.Out, "        Suspect %s\n\n", frameString(suspect))
	}
}

// suspectFrame returns the deepest frame whose function belongs to one of
// the test package prefixes. Frames are ordered innermost first, so the
// first match is the test code nearest the failure.
func suspectFrame(frames []runtime.Frame, prefixes []string) (runtime.Frame, bool) {
	for _, frame := range frames {
		for _, prefix := range prefixes {
			if prefix != "" && strings.HasPrefix(frame.Function, prefix) {
				return frame, true
			}
		}
	}
	return runtime.Frame{}, false
}

func frameString(f runtime.Frame) string {
	if f.Function == "" {
		return fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
	}
	return fmt.Sprintf("%s(%s:%d)", f.Function, path.Base(f.File), f.Line)
}

// simpleTypeName reduces an error's dynamic type to its bare name.
func simpleTypeName(err error) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// indentNewlines re-indents embedded newlines to six spaces so multi-line
// messages hang under their label.
func indentNewlines(message string) string {
	return strings.ReplaceAll(message, "\n", "\n      ")
}
