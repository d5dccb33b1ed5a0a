// Package targets is the registry of buildable recipes.
package targets

import (
	"sort"
	"strings"

	"github.com/goplus/unibuild/formula"
)

// Registry maps case-insensitive names to targets. Detection walks targets
// in registration order.
type Registry struct {
	byName map[string]formula.Target
	order  []formula.Target
}

// New returns a registry holding ts.
func New(ts ...formula.Target) *Registry {
	r := &Registry{byName: make(map[string]formula.Target)}
	for _, t := range ts {
		r.Add(t)
	}
	return r
}

// Add registers t, replacing a target of the same name.
func (r *Registry) Add(t formula.Target) {
	key := strings.ToLower(t.Name())
	if old, ok := r.byName[key]; ok {
		for i, o := range r.order {
			if o == old {
				r.order[i] = t
				break
			}
		}
	} else {
		r.order = append(r.order, t)
	}
	r.byName[key] = t
}

// Lookup finds a target by name, ignoring case.
func (r *Registry) Lookup(name string) (formula.Target, bool) {
	t, ok := r.byName[strings.ToLower(name)]
	return t, ok
}

// Detect returns the first target recognizing the source tree of c.
func (r *Registry) Detect(c *formula.Context) (formula.Target, bool) {
	for _, t := range r.order {
		if t.Detect(c) {
			return t, true
		}
	}
	return nil, false
}

// All returns the targets sorted by name.
func (r *Registry) All() []formula.Target {
	ts := append([]formula.Target(nil), r.order...)
	sort.Slice(ts, func(i, j int) bool {
		return strings.ToLower(ts[i].Name()) < strings.ToLower(ts[j].Name())
	})
	return ts
}

// Default returns a registry with every built-in target.
func Default() *Registry {
	return New(
		NewBuildPrefix(),
		NewCleanAll(),
		NewCleanDeps(),
		NewCMake(),
		NewGmake(),
		NewMeson(),
		NewNasm(),
		NewNinja(),
		NewPkgconf(),
		NewTestDeps(),
		NewYasm(),
	)
}
