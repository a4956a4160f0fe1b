package interact

import (
	"testing"

	"pgregory.net/rapid"
)

func TestURLPattern_Exact(t *testing.T) {
	t.Parallel()
	p := ExactURL("http://localhost:3000/home")
	if !p.Match("http://localhost:3000/home") {
		t.Fatal("exact URL should match itself")
	}
	for _, other := range []string{"http://localhost:3000/home/", "http://localhost:3000/error", "http://localhost:3000/homepage"} {
		if p.Match(other) {
			t.Fatalf("exact URL matched %q", other)
		}
	}
}

func TestURLPattern_Glob(t *testing.T) {
	t.Parallel()
	cases := []struct {
		glob  string
		url   string
		match bool
	}{
		{"**/home", "http://localhost:3000/home", true},
		{"**/home", "http://localhost:3000/error", false},
		{"http://localhost:3000/*", "http://localhost:3000/home", true},
		{"http://localhost:3000/*", "http://localhost:3000/dev/benchmark", false},
		{"http://localhost:3000/**", "http://localhost:3000/dev/benchmark", true},
		{"**/learn-top?tab=*", "http://x/learn-top?tab=new", true},
		{"**/a.b", "http://x/aXb", false},
	}
	for _, tc := range cases {
		if got := GlobURL(tc.glob).Match(tc.url); got != tc.match {
			t.Errorf("GlobURL(%q).Match(%q) = %v, want %v", tc.glob, tc.url, got, tc.match)
		}
	}
}

func TestParseURLPattern(t *testing.T) {
	t.Parallel()
	p, err := ParseURLPattern(`re:/home$`)
	if err != nil {
		t.Fatalf("ParseURLPattern failed: %v", err)
	}
	if !p.Match("http://localhost:3000/home") || p.Match("http://localhost:3000/home/x") {
		t.Fatal("regexp pattern mismatch")
	}
	if _, err := ParseURLPattern("re:("); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
	if _, err := ParseURLPattern(""); err == nil {
		t.Fatal("expected error for empty pattern")
	}
	g, _ := ParseURLPattern("**/home")
	if !g.Match("https://app.example/home") {
		t.Fatal("glob pattern should be detected from '*'")
	}
}

func testGlobWithoutWildcardsIsExact(t *rapid.T) {
	s := rapid.StringMatching(`[a-zA-Z0-9:/.?=&%+()\[\]$^|-]{1,40}`).Draw(t, "url")
	other := rapid.StringMatching(`[a-zA-Z0-9:/.?=&%+()\[\]$^|-]{1,40}`).Draw(t, "other")

	p := GlobURL(s)
	if !p.Match(s) {
		t.Fatalf("literal glob %q does not match itself", s)
	}
	if other != s && p.Match(other) {
		t.Fatalf("literal glob %q matched different URL %q", s, other)
	}
}

func TestGlobWithoutWildcardsIsExact(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testGlobWithoutWildcardsIsExact)
}
