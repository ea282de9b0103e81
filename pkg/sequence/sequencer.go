package sequence

import (
	"fmt"
	"math"
	"sort"

	"github.com/dgryski/go-farm"

	"github.com/testpack/testpack/pkg/framework"
)

// Shard assigns this process one partition of the candidate classes.
// Classes, not methods, are the sharding unit, so intra-class ordering is
// preserved on each shard.
type Shard struct {
	Index int
	Total int
}

// Validate checks 0 <= Index < Total.
func (s Shard) Validate() error {
	if s.Total <= 0 || s.Index < 0 || s.Index >= s.Total {
		return fmt.Errorf("sequence: invalid shard %d/%d", s.Index, s.Total)
	}
	return nil
}

// Contains reports whether the class belongs to this shard. The hash is
// farmhash Fingerprint32, stable across processes and platforms.
func (s Shard) Contains(classFQN string) bool {
	return farm.Fingerprint32([]byte(classFQN))%uint32(s.Total) == uint32(s.Index)
}

// Sequencer turns a package selector into an ordered execution request.
type Sequencer struct {
	registry *framework.Registry
	shard    *Shard
}

// NewSequencer creates a sequencer over the given registry with no
// sharding.
func NewSequencer(registry *framework.Registry) *Sequencer {
	return &Sequencer{registry: registry}
}

// NewShardedSequencer creates a sequencer that retains only classes of
// shard index/total. More shards than classes is fine — surplus shards
// simply produce empty requests.
func NewShardedSequencer(registry *framework.Registry, index, total int) (*Sequencer, error) {
	shard := Shard{Index: index, Total: total}
	if err := shard.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{registry: registry, shard: &shard}, nil
}

// Sequence resolves the pattern into a request in deterministic
// lexicographic class-then-method order.
func (s *Sequencer) Sequence(pattern string) (*framework.Request, error) {
	return s.SequenceWithHistory(nil, pattern)
}

// SequenceWithHistory resolves the pattern and then stable-sorts the
// result so that recently-failed classes and methods run first. History
// maps test ids to runs since their last failure; absent entries sort
// last. A class's recency is the minimum over its methods.
func (s *Sequencer) SequenceWithHistory(history map[string]int, pattern string) (*framework.Request, error) {
	selector, err := ParseSelector(pattern)
	if err != nil {
		return nil, err
	}

	var entries []framework.ClassRequest
	for _, class := range s.registry.Classes() {
		if !class.Runnable() || !selector.MatchesClass(class.Name) {
			continue
		}
		if s.shard != nil && !s.shard.Contains(class.Name) {
			continue
		}
		methods := make([]string, 0, len(class.Methods))
		seen := make(map[string]bool, len(class.Methods))
		for _, m := range class.Methods {
			if !seen[m.Name] {
				seen[m.Name] = true
				methods = append(methods, m.Name)
			}
		}
		sort.Strings(methods)
		entries = append(entries, framework.ClassRequest{Class: class, Methods: methods})
	}
	// Registry.Classes is sorted by name, so entries are already in
	// lexicographic class order.

	if len(history) > 0 {
		prioritise(entries, history)
	}
	return framework.NewRequest(entries), nil
}

// prioritise stable-sorts classes by their best (lowest) runs-since-
// last-failure, then methods within each class by their own. Stability
// keeps lexicographic order as the tie-break.
func prioritise(entries []framework.ClassRequest, history map[string]int) {
	recency := func(class, method string) int {
		id := framework.Description{Class: class, Method: method}.ID()
		if v, ok := history[id]; ok {
			return v
		}
		return math.MaxInt
	}

	classRecency := make(map[string]int, len(entries))
	for _, e := range entries {
		best := math.MaxInt
		for _, m := range e.Methods {
			if v := recency(e.Class.Name, m); v < best {
				best = v
			}
		}
		classRecency[e.Class.Name] = best
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return classRecency[entries[i].Class.Name] < classRecency[entries[j].Class.Name]
	})
	for _, e := range entries {
		methods := e.Methods
		class := e.Class.Name
		sort.SliceStable(methods, func(i, j int) bool {
			return recency(class, methods[i]) < recency(class, methods[j])
		})
	}
}
