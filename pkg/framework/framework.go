// Package framework provides the minimal test framework substrate the
// sequencer and runner operate on: a static registry of test classes, an
// ordered request over them, filtering, and a serial event pump that
// drives run listeners.
package framework

import "strings"

// Description identifies a single test method within a test class.
type Description struct {
	Class  string // fully qualified class name, e.g. "org.example.simpletests.SimpleTest"
	Method string
}

// ID returns the canonical test identifier, "method(fully.qualified.Class)".
func (d Description) ID() string {
	return d.Method + "(" + d.Class + ")"
}

// SimpleClass returns the last segment of the class name.
func (d Description) SimpleClass() string {
	if i := strings.LastIndex(d.Class, "."); i >= 0 {
		return d.Class[i+1:]
	}
	return d.Class
}

// Package returns the package portion of the class name.
func (d Description) Package() string {
	if i := strings.LastIndex(d.Class, "."); i >= 0 {
		return d.Class[:i]
	}
	return ""
}

func (d Description) String() string { return d.ID() }

// ClassRequest is one class's slice of a request, with its methods in
// execution order.
type ClassRequest struct {
	Class   *Class
	Methods []string
}

// Request is an ordered set of test methods grouped by class.
type Request struct {
	classes []ClassRequest
}

// NewRequest builds a request from ordered class entries. Entries with no
// methods are dropped.
func NewRequest(entries []ClassRequest) *Request {
	req := &Request{}
	for _, e := range entries {
		if len(e.Methods) == 0 {
			continue
		}
		req.classes = append(req.classes, e)
	}
	return req
}

// Classes returns the ordered class entries.
func (r *Request) Classes() []ClassRequest { return r.classes }

// TestCount returns the total number of test methods in the request.
func (r *Request) TestCount() int {
	n := 0
	for _, c := range r.classes {
		n += len(c.Methods)
	}
	return n
}

// Descriptions returns every test method in execution order.
func (r *Request) Descriptions() []Description {
	out := make([]Description, 0, r.TestCount())
	for _, c := range r.classes {
		for _, m := range c.Methods {
			out = append(out, Description{Class: c.Class.Name, Method: m})
		}
	}
	return out
}

// Filter returns a new request containing only the methods keep reports
// true for. Classes left without methods are dropped.
func (r *Request) Filter(keep func(Description) bool) *Request {
	var entries []ClassRequest
	for _, c := range r.classes {
		var methods []string
		for _, m := range c.Methods {
			if keep(Description{Class: c.Class.Name, Method: m}) {
				methods = append(methods, m)
			}
		}
		if len(methods) > 0 {
			entries = append(entries, ClassRequest{Class: c.Class, Methods: methods})
		}
	}
	return NewRequest(entries)
}
