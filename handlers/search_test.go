package handlers

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func writeTree(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestSearchTokens(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{"Alpha  beta", []string{"alpha", "beta"}},
		{"a Foo b", []string{"foo"}},
		{"x", []string{"x"}},
		{"   ", nil},
		{"one two three four five six seven", []string{"one", "two", "three", "four", "five", "six"}},
	}
	for _, c := range cases {
		if got := searchTokens(c.query); !reflect.DeepEqual(got, c.want) {
			t.Errorf("searchTokens(%q) = %v, want %v", c.query, got, c.want)
		}
	}
}

func TestSearchPathsRanksAndSkips(t *testing.T) {
	root := writeTree(t, map[string]string{
		"alpha/readme.md":      "\n   \n  Hello\tworld  \n",
		"alpha/beta_notes.txt": "notes",
		"alpha.bin":            "ab\x00cd",
		".git/alpha_config":    "skip",
		"build/alpha.o":        "skip",
		"target/alpha":         "skip",
		"unrelated.txt":        "nothing",
	})

	matches := searchPaths(root, "alpha", 5)
	var paths []string
	for _, m := range matches {
		paths = append(paths, m.path)
	}
	want := []string{"alpha.bin", "alpha/readme.md", "alpha/beta_notes.txt"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	if matches[0].snippet != "" {
		t.Errorf("binary file should have no snippet, got %q", matches[0].snippet)
	}
	if matches[1].snippet != "Hello world" {
		t.Errorf("expected first non-blank line, got %q", matches[1].snippet)
	}

	matches = searchPaths(root, "ALPHA beta", 5)
	if len(matches) == 0 || matches[0].path != "alpha/beta_notes.txt" || matches[0].score != 2 {
		t.Fatalf("expected beta_notes first with score 2, got %+v", matches)
	}
}

func TestSearchPathsClampsLimit(t *testing.T) {
	files := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		files["doc_"+n+".txt"] = n
	}
	root := writeTree(t, files)

	if got := len(searchPaths(root, "doc", 0)); got != 1 {
		t.Errorf("limit 0 should return 1 match, got %d", got)
	}
	if got := len(searchPaths(root, "doc", 50)); got != maxSearchResults {
		t.Errorf("limit 50 should return %d matches, got %d", maxSearchResults, got)
	}
	if got := len(searchPaths(root, "   ", 5)); got != 0 {
		t.Errorf("blank query should match nothing, got %d", got)
	}
}

func TestReadSnippetTruncates(t *testing.T) {
	root := writeTree(t, map[string]string{"long.txt": strings.Repeat("x", 100)})
	s := readSnippet(filepath.Join(root, "long.txt"))
	if utf8.RuneCountInString(s) != maxSnippetChars || !strings.HasSuffix(s, "…") {
		t.Fatalf("expected %d chars ending in ellipsis, got %q", maxSnippetChars, s)
	}
}

func TestReadSnippetSkipsLargeFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"big.txt": strings.Repeat("y", maxSnippetFile+1)})
	if s := readSnippet(filepath.Join(root, "big.txt")); s != "" {
		t.Fatalf("expected no snippet for large file, got %q", s)
	}
}

func TestFormatSearchResult(t *testing.T) {
	if got := formatSearchResult("zzz", nil); got != "Search: no matches for 'zzz'" {
		t.Errorf("unexpected empty result %q", got)
	}

	got := formatSearchResult("a b", []searchMatch{
		{path: "a/b.txt", score: 2, snippet: "hello"},
		{path: "a.txt", score: 1},
	})
	want := "Search: 2 match(es): a/b.txt — hello; a.txt (weak)"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	long := strings.Repeat("p", 70)
	got = formatSearchResult("p", []searchMatch{{path: long, score: 2}})
	if got != "Search: 1 match(es): …"+strings.Repeat("p", maxPathChars-1) {
		t.Errorf("long path not shortened: %q", got)
	}

	var many []searchMatch
	for i := 0; i < 5; i++ {
		many = append(many, searchMatch{path: strings.Repeat("q", 60), score: 2, snippet: strings.Repeat("s", 60)})
	}
	got = formatSearchResult("q", many)
	if utf8.RuneCountInString(got) != maxSearchLineChar || !strings.HasSuffix(got, "…") {
		t.Errorf("expected %d chars ending in ellipsis, got %d: %q", maxSearchLineChar, utf8.RuneCountInString(got), got)
	}
}

func TestResolveSearchRoot(t *testing.T) {
	dir := t.TempDir()
	if got := ResolveSearchRoot(dir); got != dir {
		t.Errorf("expected configured root %s, got %s", dir, got)
	}

	t.Setenv(SearchRootEnv, dir)
	if got := ResolveSearchRoot(filepath.Join(dir, "missing")); got != dir {
		t.Errorf("expected env root %s, got %s", dir, got)
	}

	t.Setenv(SearchRootEnv, "")
	cwd, _ := os.Getwd()
	if got := ResolveSearchRoot(""); got != cwd {
		t.Errorf("expected cwd %s, got %s", cwd, got)
	}
}
