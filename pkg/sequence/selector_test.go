package sequence

import "testing"

func TestParseSelector_Malformed(t *testing.T) {
	for _, pattern := range []string{"", " ", "a..b", "a.*b.c", ".a"} {
		if _, err := ParseSelector(pattern); err == nil {
			t.Errorf("ParseSelector(%q) succeeded, want error", pattern)
		}
	}
}

func TestSelector_MatchesClass(t *testing.T) {
	cases := []struct {
		pattern string
		class   string
		want    bool
	}{
		// Literal patterns select the exact package, not sub-packages.
		{"org.example.simpletests", "org.example.simpletests.SimpleTest", true},
		{"org.example.simpletests", "org.example.simpletests.sub.SimpleTest", false},
		{"org.example.simpletests", "org.example.other.SimpleTest", false},
		{"org.example.simpletests", "org.example.simpletestsextra.SimpleTest", false},

		// Trailing prefix-star descends into sub-packages.
		{"org.example.wildcards.include*", "org.example.wildcards.include1.SimpleTest", true},
		{"org.example.wildcards.include*", "org.example.wildcards.include1.includesub1.SimpleTest", true},
		{"org.example.wildcards.include*", "org.example.wildcards.include2.SimpleTest", true},
		{"org.example.wildcards.include*", "org.example.wildcards.SimpleTest", false},
		{"org.example.wildcards.include*", "org.example.wildcards.exclude1.SimpleTest", false},

		// A middle bare star spans exactly one segment; the final
		// segment of a wildcarded pattern matches by prefix.
		{"org.example.wildcards.*.includesub", "org.example.wildcards.include1.includesub1.SimpleTest", true},
		{"org.example.wildcards.*.includesub", "org.example.wildcards.include1.includesub2.SimpleTest", true},
		{"org.example.wildcards.*.includesub", "org.example.wildcards.SimpleTest", false},
		{"org.example.wildcards.*.includesub", "org.example.wildcards.include2.SimpleTest", false},
		{"org.example.wildcards.*.includesub", "org.example.wildcards.include1.includesub1.deeper.SimpleTest", false},

		// Trailing bare star is recursive.
		{"org.example.wildcards.*", "org.example.wildcards.include1.SimpleTest", true},
		{"org.example.wildcards.*", "org.example.wildcards.include1.includesub1.SimpleTest", true},
		{"org.example.wildcards.*", "org.example.wildcards.SimpleTest", false},

		// Mid-pattern prefix star consumes one segment.
		{"org.example.inc*.sub", "org.example.include.sub.SimpleTest", true},
		{"org.example.inc*.sub", "org.example.exclude.sub.SimpleTest", false},

		// Default-package classes never match dotted patterns.
		{"org.example", "SimpleTest", false},
	}

	for _, tc := range cases {
		sel, err := ParseSelector(tc.pattern)
		if err != nil {
			t.Fatalf("ParseSelector(%q): %v", tc.pattern, err)
		}
		if got := sel.MatchesClass(tc.class); got != tc.want {
			t.Errorf("pattern %q vs class %q = %v, want %v", tc.pattern, tc.class, got, tc.want)
		}
	}
}
