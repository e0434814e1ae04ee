// Package index implements the forward/backward indexing subsystem:
// Storage (the raw signature<->key backend pairing) and Index (a named,
// per-field view over it with a value-to-signatures extractor).
package index

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

var reSpaces = regexp.MustCompile(`[\s\t\n]+`)

// Normalize lowercases s and collapses every run of whitespace to a single
// space, the baseline transform every signature extractor applies before
// anything else.
func Normalize(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ToLower(s), " "))
}

// accentFold maps common Latin accented runes to their unaccented form.
// Go's standard library has no Unicode normalization table (that lives in
// golang.org/x/text, outside this module's dependency surface), so
// NoAccents uses this small hand-built table instead of a full NFD fold.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ý': 'y',
	'Á': 'A', 'À': 'A', 'Â': 'A', 'Ä': 'A', 'Ã': 'A', 'Å': 'A',
	'É': 'E', 'È': 'E', 'Ê': 'E', 'Ë': 'E',
	'Í': 'I', 'Ì': 'I', 'Î': 'I', 'Ï': 'I',
	'Ó': 'O', 'Ò': 'O', 'Ô': 'O', 'Ö': 'O', 'Õ': 'O',
	'Ú': 'U', 'Ù': 'U', 'Û': 'U', 'Ü': 'U',
	'Ñ': 'N', 'Ç': 'C', 'Ý': 'Y',
}

// NoAccents replaces accented Latin letters in s with their plain
// equivalent, leaving every other rune untouched.
func NoAccents(s string) string {
	return strings.Map(func(r rune) rune {
		if folded, ok := accentFold[r]; ok {
			return folded
		}
		return r
	}, s)
}

var reNonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Keyword reduces s to the single normalized, unaccented signature a simple
// equality index uses: accents are folded away, every run of non-
// alphanumeric characters becomes a single space, and the result is
// normalized.
func Keyword(s string) string {
	s = NoAccents(s)
	s = reNonAlnum.ReplaceAllString(s, " ")
	return Normalize(s)
}

// minKeywordLength is the shortest word Keywords will index, filtering out
// stopword-sized noise like "a" or "to".
const minKeywordLength = 3

// Keywords splits s on whitespace into words, reduces each to its Keyword
// signature, drops anything shorter than minKeywordLength, and deduplicates
// the result — for a field that should be searchable by any of its words.
func Keywords(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, word := range strings.Fields(s) {
		k := Keyword(word)
		if k == "" || len(k) < minKeywordLength || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Paths returns an extractor that breaks a sep-delimited path string into
// every leading prefix, so "a/b/c" indexes under "a", "a/b", and "a/b/c" —
// useful for hierarchical fields like filesystem-style tags.
func Paths(sep string) func(string) []string {
	return func(s string) []string {
		parts := strings.Split(s, sep)
		out := make([]string, 0, len(parts))
		for i := range parts {
			out = append(out, strings.Join(parts[:i+1], sep))
		}
		return out
	}
}

var (
	utMu   sync.Mutex
	utLast int64
)

// UpdateTime returns a strictly increasing YYYYMMDDhhmmssuuuuuu numeric
// timestamp string (a plain 20-digit integer, no layout punctuation), used
// to stamp an index's meta bucket so a reader can tell a cold (never built)
// index from a stale one.
func UpdateTime() string {
	utMu.Lock()
	defer utMu.Unlock()
	now := time.Now().UnixMicro()
	if now <= utLast {
		now = utLast + 1
	}
	utLast = now
	t := time.UnixMicro(now).UTC()
	micros := now % 1_000_000
	return fmt.Sprintf("%s%06d", t.Format("20060102150405"), micros)
}
