// Package streams provides scoped redirection of the process's stdout and
// stderr into per-stream buffers, with optional tee to the originals.
package streams

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrCaptureActive is returned by Grab when a capture is already in
// progress. Nested captures indicate a programming bug.
var ErrCaptureActive = errors.New("streams: capture already active")

var (
	mu     sync.Mutex
	active *Capture
)

// Capture is one active (or completed) stdout/stderr redirection.
type Capture struct {
	label string

	origStdout *os.File
	origStderr *os.File
	outW       *os.File
	errW       *os.File

	outBuf bytes.Buffer
	errBuf bytes.Buffer
	done   sync.WaitGroup

	restored bool
}

// Grab swaps the process stdout and stderr for pipes drained into
// buffers. With tee set, bytes are also forwarded to the original streams
// in real time. Exactly one capture may be active per process.
func Grab(tee bool, label string) (*Capture, error) {
	return GrabTo(tee, label, nil, nil)
}

// GrabTo is Grab with explicit tee destinations; nil writers fall back to
// the original streams. The tee destinations must not be written by
// anything else until Restore.
func GrabTo(tee bool, label string, teeOut, teeErr io.Writer) (*Capture, error) {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return nil, fmt.Errorf("%w (held by %q, requested by %q)", ErrCaptureActive, active.label, label)
	}

	c := &Capture{label: label, origStdout: os.Stdout, origStderr: os.Stderr}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("streams: creating stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("streams: creating stderr pipe: %w", err)
	}
	c.outW, c.errW = outW, errW

	var outDst io.Writer = &c.outBuf
	var errDst io.Writer = &c.errBuf
	if tee {
		if teeOut == nil {
			teeOut = c.origStdout
		}
		if teeErr == nil {
			teeErr = c.origStderr
		}
		outDst = io.MultiWriter(&c.outBuf, teeOut)
		errDst = io.MultiWriter(&c.errBuf, teeErr)
	}

	c.done.Add(2)
	go drain(&c.done, outDst, outR)
	go drain(&c.done, errDst, errR)

	os.Stdout = outW
	os.Stderr = errW
	active = c
	return c, nil
}

func drain(wg *sync.WaitGroup, dst io.Writer, src *os.File) {
	defer wg.Done()
	defer src.Close()
	_, _ = io.Copy(dst, src)
}

// Restore puts the original streams back and joins the drain goroutines.
// Idempotent, so it is safe to defer alongside explicit calls on other
// exit paths.
func (c *Capture) Restore() {
	mu.Lock()
	defer mu.Unlock()
	if c.restored {
		return
	}
	c.restored = true

	os.Stdout = c.origStdout
	os.Stderr = c.origStderr
	c.outW.Close()
	c.errW.Close()
	c.done.Wait()
	if active == c {
		active = nil
	}
}

// StdOut returns the bytes written to stdout during the capture. Complete
// only after Restore.
func (c *Capture) StdOut() string { return c.outBuf.String() }

// StdErr returns the bytes written to stderr during the capture. Complete
// only after Restore.
func (c *Capture) StdErr() string { return c.errBuf.String() }
