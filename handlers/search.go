package handlers

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	SearchRootEnv = "CONDUCTOR_SEARCH_ROOT"

	maxSearchFiles    = 10000
	maxSearchTokens   = 6
	maxSearchResults  = 5
	maxSnippetFile    = 128 * 1024
	binarySniffBytes  = 512
	maxSnippetChars   = 60
	maxPathChars      = 64
	maxSearchLineChar = 220
)

var skippedSearchDirs = map[string]bool{
	".git":       true,
	"target":     true,
	"build":      true,
	"iso-output": true,
}

type searchMatch struct {
	path    string
	score   int
	snippet string
}

// ResolveSearchRoot picks the configured root, then $CONDUCTOR_SEARCH_ROOT,
// then the working directory. A working directory named "conductor" is
// assumed to sit inside the workspace, so its parent is searched instead.
func ResolveSearchRoot(configured string) string {
	for _, candidate := range []string{configured, os.Getenv(SearchRootEnv)} {
		if candidate == "" {
			continue
		}
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return candidate
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(cwd) == "conductor" {
		return filepath.Dir(cwd)
	}
	return cwd
}

func searchTokens(query string) []string {
	lower := strings.ToLower(query)
	var tokens []string
	for _, t := range strings.Fields(lower) {
		if len(t) < 2 {
			continue
		}
		tokens = append(tokens, t)
		if len(tokens) == maxSearchTokens {
			break
		}
	}
	if len(tokens) == 0 {
		if trimmed := strings.TrimSpace(lower); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

// searchPaths scores every file under root by how many query tokens its
// relative path contains and returns the best few with a text snippet.
func searchPaths(root, query string, limit int) []searchMatch {
	tokens := searchTokens(query)
	if limit < 1 {
		limit = 1
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	var scored []searchMatch
	visited := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if visited >= maxSearchFiles {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if path != root && skippedSearchDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		visited++

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		lowerRel := strings.ToLower(rel)
		score := 0
		for _, t := range tokens {
			if strings.Contains(lowerRel, t) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, searchMatch{path: rel, score: score})
		}
		return nil
	})

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if len(a.path) != len(b.path) {
			return len(a.path) < len(b.path)
		}
		return a.path < b.path
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	for i := range scored {
		scored[i].snippet = readSnippet(filepath.Join(root, filepath.FromSlash(scored[i].path)))
	}
	return scored
}

// readSnippet returns the first non-blank line of a small text file.
func readSnippet(path string) string {
	fi, err := os.Stat(path)
	if err != nil || fi.Size() > maxSnippetFile {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sniff := data
	if len(sniff) > binarySniffBytes {
		sniff = sniff[:binarySniffBytes]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(bytes.ToValidUTF8(data, []byte("�"))))
	scanner.Buffer(make([]byte, 0, 4096), maxSnippetFile+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return truncateWithEllipsis(strings.ReplaceAll(line, "\t", " "), maxSnippetChars)
	}
	return ""
}

func formatSearchResult(query string, matches []searchMatch) string {
	if len(matches) == 0 {
		return fmt.Sprintf("Search: no matches for '%s'", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search: %d match(es): ", len(matches))
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("; ")
		}
		if utf8.RuneCountInString(m.path) > maxPathChars {
			sb.WriteString("…")
			sb.WriteString(tailChars(m.path, maxPathChars-1))
		} else {
			sb.WriteString(m.path)
		}
		if m.snippet != "" {
			sb.WriteString(" — ")
			sb.WriteString(m.snippet)
		}
		if m.score <= 1 {
			sb.WriteString(" (weak)")
		}
	}
	return truncateWithEllipsis(sb.String(), maxSearchLineChar)
}

func truncateWithEllipsis(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

func tailChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}
