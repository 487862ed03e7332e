// Package spam rejects messages whose subject or body contains a
// configured block word.
package spam

import (
	"fmt"
	"regexp"
)

// Filter matches message text against a fixed set of block words using
// word-boundary semantics: a block word matches only as a whole word,
// never as a substring of a longer one. Patterns are compiled once at
// startup, not per request.
type Filter struct {
	words    []string
	patterns []*regexp.Regexp
}

// Compile builds a Filter from the configured block words. Each entry is
// embedded in a \b...\b pattern, so entries may use regexp syntax. An
// entry that does not compile is a configuration error: callers must
// treat it as fatal at startup rather than skip it at request time.
func Compile(words []string) (*Filter, error) {
	f := &Filter{
		words:    make([]string, 0, len(words)),
		patterns: make([]*regexp.Regexp, 0, len(words)),
	}

	for _, w := range words {
		if w == "" {
			return nil, fmt.Errorf("empty block word entry")
		}
		re, err := regexp.Compile(`\b(?:` + w + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid block word %q: %w", w, err)
		}
		f.words = append(f.words, w)
		f.patterns = append(f.patterns, re)
	}

	return f, nil
}

// Match reports whether subject or text contains any block word, and
// returns the first word that matched. Subject and body are tested
// independently; the scan short-circuits on the first hit.
func (f *Filter) Match(subject, text string) (string, bool) {
	for i, re := range f.patterns {
		if re.MatchString(subject) || re.MatchString(text) {
			return f.words[i], true
		}
	}
	return "", false
}

// Len returns the number of compiled block words.
func (f *Filter) Len() int {
	return len(f.patterns)
}
