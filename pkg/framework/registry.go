package framework

import "sort"

// TestFunc is the body of a single test method. A nil return is a pass, an
// error wrapped by Assumption is an assumption failure, and any other
// error (or panic) is a failure.
type TestFunc func() error

// Method is one test method of a class.
type Method struct {
	Name    string
	Fn      TestFunc
	Ignored bool
}

// Class is a registered test class. A class with NotRunnable set, or with
// no methods, is skipped by discovery — the stand-in for abstract or
// non-instantiable classes.
type Class struct {
	Name        string // fully qualified, e.g. "org.example.simpletests.SimpleTest"
	Methods     []Method
	NotRunnable bool
}

// Runnable reports whether discovery may include this class.
func (c *Class) Runnable() bool {
	return c != nil && !c.NotRunnable && len(c.Methods) > 0
}

// Method returns the named method, or nil.
func (c *Class) Method(name string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name {
			return &c.Methods[i]
		}
	}
	return nil
}

// Registry is the pre-generated index of test classes discovery operates
// on. Go has no runtime classpath scanning, so a build step (or the test
// suites themselves) registers classes here.
type Registry struct {
	classes map[string]*Class
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Register adds a class, replacing any previous registration of the same
// name.
func (r *Registry) Register(c *Class) {
	r.classes[c.Name] = c
}

// Lookup returns the class with the given fully qualified name, or nil.
func (r *Registry) Lookup(name string) *Class {
	return r.classes[name]
}

// Classes returns all registered classes sorted by name.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry populated by Register.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a class to the default registry. Generated test indexes
// call this from init functions.
func Register(c *Class) { defaultRegistry.Register(c) }
