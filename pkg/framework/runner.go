package framework

import (
	"fmt"
	"runtime"
)

// RunListener observes test lifecycle events. Events are fired serially on
// the runner's goroutine; implementations need no locking.
type RunListener interface {
	RunStarted(totalTests int)
	TestStarted(Description)
	TestFailure(Failure)
	TestAssumptionFailure(Failure)
	TestIgnored(Description)
	TestFinished(Description)
	RunFinished(*Result)
}

// Notifier fans lifecycle events out to listeners and carries the
// fail-fast stop latch.
type Notifier struct {
	listeners []RunListener
	stopped   bool
}

// NewNotifier creates a notifier with no listeners.
func NewNotifier() *Notifier { return &Notifier{} }

// AddListener attaches a listener. Not safe to call once a run started.
func (n *Notifier) AddListener(l RunListener) {
	n.listeners = append(n.listeners, l)
}

// PleaseStop requests that the runner stop after the current test. The
// latch is one-way.
func (n *Notifier) PleaseStop() { n.stopped = true }

// StopRequested reports whether PleaseStop was called.
func (n *Notifier) StopRequested() bool { return n.stopped }

func (n *Notifier) fireRunStarted(total int) {
	for _, l := range n.listeners {
		l.RunStarted(total)
	}
}

func (n *Notifier) fireTestStarted(d Description) {
	for _, l := range n.listeners {
		l.TestStarted(d)
	}
}

func (n *Notifier) fireTestFailure(f Failure) {
	for _, l := range n.listeners {
		l.TestFailure(f)
	}
}

func (n *Notifier) fireTestAssumptionFailure(f Failure) {
	for _, l := range n.listeners {
		l.TestAssumptionFailure(f)
	}
}

func (n *Notifier) fireTestIgnored(d Description) {
	for _, l := range n.listeners {
		l.TestIgnored(d)
	}
}

func (n *Notifier) fireTestFinished(d Description) {
	for _, l := range n.listeners {
		l.TestFinished(d)
	}
}

func (n *Notifier) fireRunFinished(r *Result) {
	for _, l := range n.listeners {
		l.RunFinished(r)
	}
}

// Run executes every method of the request in order, firing events on the
// notifier. Execution is strictly serial: TestStarted always precedes the
// TestFailure/TestFinished of the same description. When the notifier's
// stop latch is set mid-run, remaining tests are neither executed nor
// scored.
func Run(request *Request, notifier *Notifier) *Result {
	result := &Result{}
	notifier.fireRunStarted(request.TestCount())

classes:
	for _, cr := range request.Classes() {
		for _, name := range cr.Methods {
			if notifier.StopRequested() {
				break classes
			}
			desc := Description{Class: cr.Class.Name, Method: name}
			method := cr.Class.Method(name)
			if method == nil {
				continue
			}
			if method.Ignored {
				result.IgnoredCount++
				notifier.fireTestIgnored(desc)
				continue
			}

			notifier.fireTestStarted(desc)
			err, frames := invoke(method.Fn)
			switch {
			case err == nil:
			case IsAssumption(err):
				result.AssumptionFailureCount++
				notifier.fireTestAssumptionFailure(Failure{Description: desc, Err: err})
			default:
				failure := Failure{Description: desc, Err: err, Frames: frames}
				result.FailureCount++
				result.Failures = append(result.Failures, failure)
				notifier.fireTestFailure(failure)
			}
			result.RunCount++
			notifier.fireTestFinished(desc)
		}
	}

	notifier.fireRunFinished(result)
	return result
}

// invoke runs a test body, converting panics into failures with the stack
// captured at the panic site.
func invoke(fn TestFunc) (err error, frames []runtime.Frame) {
	defer func() {
		if r := recover(); r != nil {
			var pcs [64]uintptr
			n := runtime.Callers(3, pcs[:])
			iter := runtime.CallersFrames(pcs[:n])
			for {
				frame, more := iter.Next()
				frames = append(frames, frame)
				if !more {
					break
				}
			}
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return fn(), nil
}
