package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpack/testpack/pkg/framework"
)

func pass() error { return nil }

// fixtureRegistry registers classes with the given method names, all
// runnable unless listed in notRunnable.
func fixtureRegistry(classes map[string][]string, notRunnable ...string) *framework.Registry {
	reg := framework.NewRegistry()
	skip := make(map[string]bool, len(notRunnable))
	for _, name := range notRunnable {
		skip[name] = true
	}
	for name, methods := range classes {
		c := &framework.Class{Name: name, NotRunnable: skip[name]}
		for _, m := range methods {
			c.Methods = append(c.Methods, framework.Method{Name: m, Fn: pass})
		}
		reg.Register(c)
	}
	return reg
}

func ids(req *framework.Request) []string {
	var out []string
	for _, d := range req.Descriptions() {
		out = append(out, d.ID())
	}
	return out
}

func TestSequence_SimpleContains(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.simpletests.SimpleTest": {"testTrue2", "testTrue1"},
		"org.example.othertests.OtherTest":   {"testTrue1"},
	})

	req, err := NewSequencer(reg).Sequence("org.example.simpletests")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testTrue1(org.example.simpletests.SimpleTest)",
		"testTrue2(org.example.simpletests.SimpleTest)",
	}, ids(req))
}

func TestSequence_WildcardOfEndOfPackage(t *testing.T) {
	classes := map[string][]string{}
	for _, pkg := range []string{
		"org.example.wildcards.include1",
		"org.example.wildcards.include1.includesub1",
		"org.example.wildcards.include1.includesub2",
		"org.example.wildcards.include2",
	} {
		classes[pkg+".SimpleTest"] = []string{"testTrue1", "testTrue2"}
	}
	classes["org.example.wildcards.SimpleTest"] = []string{"testTrue1", "testTrue2"}
	reg := fixtureRegistry(classes)

	req, err := NewSequencer(reg).Sequence("org.example.wildcards.include*")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testTrue1(org.example.wildcards.include1.SimpleTest)",
		"testTrue2(org.example.wildcards.include1.SimpleTest)",
		"testTrue1(org.example.wildcards.include1.includesub1.SimpleTest)",
		"testTrue2(org.example.wildcards.include1.includesub1.SimpleTest)",
		"testTrue1(org.example.wildcards.include1.includesub2.SimpleTest)",
		"testTrue2(org.example.wildcards.include1.includesub2.SimpleTest)",
		"testTrue1(org.example.wildcards.include2.SimpleTest)",
		"testTrue2(org.example.wildcards.include2.SimpleTest)",
	}, ids(req))
}

func TestSequence_PackageDoesNotDescend(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.wildcards.SimpleTest":          {"testTrue1", "testTrue2"},
		"org.example.wildcards.include1.SimpleTest": {"testTrue1", "testTrue2"},
	})

	req, err := NewSequencer(reg).Sequence("org.example.wildcards")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testTrue1(org.example.wildcards.SimpleTest)",
		"testTrue2(org.example.wildcards.SimpleTest)",
	}, ids(req))
}

func TestSequence_WildcardOfMiddleOfPackage(t *testing.T) {
	classes := map[string][]string{
		"org.example.wildcards.SimpleTest":                      {"testTrue1", "testTrue2"},
		"org.example.wildcards.include1.SimpleTest":             {"testTrue1", "testTrue2"},
		"org.example.wildcards.include1.includesub1.SimpleTest": {"testTrue1", "testTrue2"},
		"org.example.wildcards.include1.includesub2.SimpleTest": {"testTrue1", "testTrue2"},
		"org.example.wildcards.include2.SimpleTest":             {"testTrue1", "testTrue2"},
	}
	reg := fixtureRegistry(classes)

	req, err := NewSequencer(reg).Sequence("org.example.wildcards.*.includesub")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testTrue1(org.example.wildcards.include1.includesub1.SimpleTest)",
		"testTrue2(org.example.wildcards.include1.includesub1.SimpleTest)",
		"testTrue1(org.example.wildcards.include1.includesub2.SimpleTest)",
		"testTrue2(org.example.wildcards.include1.includesub2.SimpleTest)",
	}, ids(req))
}

func TestSequence_RecentFailurePrioritisation(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.prioritisation.aaa_NoRecentFailuresTest": {"testTrue"},
		"org.example.prioritisation.zzz_JustFailedTest":       {"testThatHasNotFailed", "testTrue"},
	})

	history := map[string]int{
		"testTrue(org.example.prioritisation.zzz_JustFailedTest)": 0,
	}
	req, err := NewSequencer(reg).SequenceWithHistory(history, "org.example.prioritisation")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testTrue(org.example.prioritisation.zzz_JustFailedTest)",
		"testThatHasNotFailed(org.example.prioritisation.zzz_JustFailedTest)",
		"testTrue(org.example.prioritisation.aaa_NoRecentFailuresTest)",
	}, ids(req))
}

func TestSequence_HistoryYieldsPermutation(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.perm.ATest": {"testA", "testB"},
		"org.example.perm.BTest": {"testC"},
		"org.example.perm.CTest": {"testD", "testE"},
	})

	plain, err := NewSequencer(reg).Sequence("org.example.perm")
	require.NoError(t, err)
	prioritised, err := NewSequencer(reg).SequenceWithHistory(map[string]int{
		"testD(org.example.perm.CTest)": 0,
		"testC(org.example.perm.BTest)": 3,
	}, "org.example.perm")
	require.NoError(t, err)

	assert.ElementsMatch(t, ids(plain), ids(prioritised))
	assert.Equal(t, "testD(org.example.perm.CTest)", ids(prioritised)[0])
}

func TestSequence_ShardingPartitionsClasses(t *testing.T) {
	classes := map[string][]string{
		"org.example.sharding.FirstTest":  {"testA", "testB"},
		"org.example.sharding.SecondTest": {"testA", "testB"},
		"org.example.sharding.ThirdTest":  {"testA", "testB"},
	}
	reg := fixtureRegistry(classes)

	// One shard carries everything.
	seq, err := NewShardedSequencer(reg, 0, 1)
	require.NoError(t, err)
	req, err := seq.Sequence("org.example.sharding")
	require.NoError(t, err)
	assert.Equal(t, 6, req.TestCount())

	// Shards partition the classes: pairwise disjoint, union complete.
	const total = 3
	seen := make(map[string]int)
	for i := 0; i < total; i++ {
		seq, err := NewShardedSequencer(reg, i, total)
		require.NoError(t, err)
		req, err := seq.Sequence("org.example.sharding")
		require.NoError(t, err)
		for _, cr := range req.Classes() {
			seen[cr.Class.Name]++
			// Intra-class method ordering survives sharding.
			assert.Equal(t, []string{"testA", "testB"}, cr.Methods)
		}
	}
	require.Len(t, seen, len(classes))
	for name, count := range seen {
		assert.Equal(t, 1, count, "class %s appeared on %d shards", name, count)
	}
}

func TestSequence_ShardingKeepsPrioritisation(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.sharding.FirstTest": {"testA", "testB"},
	})

	seq, err := NewShardedSequencer(reg, 0, 1)
	require.NoError(t, err)
	req, err := seq.SequenceWithHistory(map[string]int{
		"testB(org.example.sharding.FirstTest)": 0,
	}, "org.example.sharding")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testB(org.example.sharding.FirstTest)",
		"testA(org.example.sharding.FirstTest)",
	}, ids(req))
}

func TestSequence_SurplusShardsAreEmptyNotErrors(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.sharding.FirstTest": {"testA"},
	})

	total := 0
	for i := 0; i < 10; i++ {
		seq, err := NewShardedSequencer(reg, i, 10)
		require.NoError(t, err)
		req, err := seq.Sequence("org.example.sharding")
		require.NoError(t, err)
		total += req.TestCount()
	}
	assert.Equal(t, 1, total)
}

func TestNewShardedSequencer_RejectsInvalidShards(t *testing.T) {
	reg := framework.NewRegistry()
	for _, s := range []Shard{{Index: -1, Total: 3}, {Index: 3, Total: 3}, {Index: 0, Total: 0}} {
		_, err := NewShardedSequencer(reg, s.Index, s.Total)
		assert.Error(t, err, "shard %d/%d", s.Index, s.Total)
	}
}

func TestSequence_SkipsNonRunnableClasses(t *testing.T) {
	reg := fixtureRegistry(map[string][]string{
		"org.example.classtypes.NormalTest":   {"shouldBeRun"},
		"org.example.classtypes.AbstractTest": {"shouldNotBeRun"},
		"org.example.classtypes.EmptyTest":    {},
	}, "org.example.classtypes.AbstractTest")

	req, err := NewSequencer(reg).Sequence("org.example.classtypes")
	require.NoError(t, err)

	assert.Equal(t, []string{"shouldBeRun(org.example.classtypes.NormalTest)"}, ids(req))
}

func TestSequence_ZeroCandidates(t *testing.T) {
	reg := framework.NewRegistry()
	req, err := NewSequencer(reg).Sequence("org.example.nothing")
	require.NoError(t, err)
	assert.Equal(t, 0, req.TestCount())
}
