package textproc

import (
	"bufio"
	"bytes"
	_ "embed"
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// English stopwords, one per line (NLTK english list).
//
//go:embed stopwords_en.txt
var stopwordsEN []byte

// Stemmer reduces a lowercase token to its stem.
type Stemmer func(token string) string

// PorterStem applies Porter's suffix-stripping algorithm.
func PorterStem(token string) string {
	return porterstemmer.StemString(token)
}

// Normalizer maps raw answer text to the token string the vectorizer was
// trained on. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
	stem      Stemmer
}

// NewNormalizer creates a normalizer with the embedded English stopword list
// and the Porter stemmer.
func NewNormalizer() *Normalizer {
	return NewNormalizerWith(DefaultStopwords(), PorterStem)
}

// NewNormalizerWith creates a normalizer with a custom stopword set and stemmer.
func NewNormalizerWith(stopwords []string, stem Stemmer) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[w] = struct{}{}
	}
	return &Normalizer{stopwords: set, stem: stem}
}

// DefaultStopwords returns a copy of the embedded English stopword list.
func DefaultStopwords() []string {
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(stopwordsEN))
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// IsStopword reports whether the token is in the stopword set.
func (n *Normalizer) IsStopword(token string) bool {
	_, ok := n.stopwords[token]
	return ok
}

// Normalize lowercases text, strips everything except ASCII letters and
// whitespace, drops stopwords, stems the remaining tokens and joins them
// with single spaces. Removal collapses characters, so "don't" becomes "dont".
func (n *Normalizer) Normalize(text string) string {
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if n.IsStopword(tok) {
			continue
		}
		kept = append(kept, n.stem(tok))
	}
	return strings.Join(kept, " ")
}

// NormalizeAll normalizes every text, preserving order.
func (n *Normalizer) NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}
