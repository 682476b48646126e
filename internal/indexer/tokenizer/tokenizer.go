// Package tokenizer turns query text into the normalized terms the title and
// body indices were built with. It lower-cases input, extracts word-shaped
// runs (optionally joined by an apostrophe or hyphen), and removes English
// and corpus stop-words. There is no stemming.
package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// wordPattern matches one leading word character (or '#' / '@') followed by
// 2 to 24 word characters, each optionally preceded by ' or -. The literal
// "3D" alternative never fires on lower-cased input; it is kept so the
// pattern stays identical to the one the indices were tokenized with.
var wordPattern = regexp.MustCompile(`[#@\p{L}\p{N}_](?:['\-]?[\p{L}\p{N}_]){2,24}|3D`)

// Tokenizer holds an immutable stop-word set and is safe for concurrent use.
type Tokenizer struct {
	stopWords   map[string]struct{}
	fingerprint string
}

var defaultTokenizer = New()

// New creates a Tokenizer that drops the built-in stop-words plus extra.
func New(extra ...string) *Tokenizer {
	stop := make(map[string]struct{}, len(englishStopwords)+len(corpusStopwords)+len(extra))
	for _, list := range [][]string{englishStopwords, corpusStopwords, extra} {
		for _, w := range list {
			stop[w] = struct{}{}
		}
	}
	return &Tokenizer{stopWords: stop, fingerprint: fingerprint(stop)}
}

// Fingerprint identifies the stop-word set. Tokenizers that drop the same
// words share a fingerprint.
func (t *Tokenizer) Fingerprint() string {
	return t.fingerprint
}

func fingerprint(stop map[string]struct{}) string {
	words := make([]string, 0, len(stop))
	for w := range stop {
		words = append(words, w)
	}
	sort.Strings(words)
	sum := sha256.Sum256([]byte(strings.Join(words, "\n")))
	return hex.EncodeToString(sum[:8])
}

// Tokenize breaks text into lower-cased terms with stop-words removed using
// the default stop-word set. Duplicates are kept in order of appearance.
func Tokenize(text string) []string {
	return defaultTokenizer.Tokenize(text)
}

// Tokenize breaks text into lower-cased terms with stop-words removed.
func (t *Tokenizer) Tokenize(text string) []string {
	// cases.Caser keeps state between calls and must not be shared.
	lowered := cases.Lower(language.Und).String(text)
	matches := wordPattern.FindAllString(lowered, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if t.IsStopWord(m) {
			continue
		}
		tokens = append(tokens, m)
	}
	return tokens
}

// IsStopWord reports whether term is dropped by this tokenizer.
func (t *Tokenizer) IsStopWord(term string) bool {
	_, ok := t.stopWords[term]
	return ok
}
