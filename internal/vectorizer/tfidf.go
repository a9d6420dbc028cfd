package vectorizer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Options control vocabulary construction.
type Options struct {
	MaxFeatures int `json:"max_features" yaml:"max_features"`
	NGramMin    int `json:"ngram_min" yaml:"ngram_min"`
	NGramMax    int `json:"ngram_max" yaml:"ngram_max"`
}

// DefaultOptions keeps the 5000 most frequent unigrams and bigrams.
func DefaultOptions() Options {
	return Options{MaxFeatures: 5000, NGramMin: 1, NGramMax: 2}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = d.MaxFeatures
	}
	if o.NGramMin <= 0 {
		o.NGramMin = d.NGramMin
	}
	if o.NGramMax < o.NGramMin {
		o.NGramMax = max(o.NGramMin, d.NGramMax)
	}
	return o
}

// Vectorizer is a frozen TF-IDF transform over a fixed vocabulary.
// It is never modified after Fit or FromState and may be shared between
// goroutines.
type Vectorizer struct {
	opts        Options
	terms       []string
	index       map[string]int
	idf         []float64
	docCount    int
	fingerprint string
}

// Fit builds the vocabulary and IDF statistics from a normalized corpus and
// returns the fitted vectorizer together with the corpus vectors.
func Fit(corpus []string, opts Options) (*Vectorizer, []FeatureVector) {
	opts = opts.withDefaults()

	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, term := range analyze(doc, opts) {
			termFreq[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}

	candidates := make([]string, 0, len(termFreq))
	for term := range termFreq {
		candidates = append(candidates, term)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if termFreq[a] != termFreq[b] {
			return termFreq[a] > termFreq[b]
		}
		return a < b
	})
	if len(candidates) > opts.MaxFeatures {
		candidates = candidates[:opts.MaxFeatures]
	}
	sort.Strings(candidates)

	n := float64(len(corpus))
	idf := make([]float64, len(candidates))
	for i, term := range candidates {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	v := newVectorizer(opts, candidates, idf, len(corpus))
	return v, v.TransformAll(corpus)
}

func newVectorizer(opts Options, terms []string, idf []float64, docCount int) *Vectorizer {
	index := make(map[string]int, len(terms))
	for i, term := range terms {
		index[term] = i
	}
	v := &Vectorizer{
		opts:     opts,
		terms:    terms,
		index:    index,
		idf:      idf,
		docCount: docCount,
	}
	v.fingerprint = computeFingerprint(opts, terms, idf)
	return v
}

// analyze splits normalized text into the n-gram terms used as features.
// Single-character tokens are not features.
func analyze(doc string, opts Options) []string {
	fields := strings.Fields(doc)
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}

	var terms []string
	for n := opts.NGramMin; n <= opts.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// Transform maps normalized text to an L2-normalized TF-IDF vector. Terms
// outside the vocabulary are ignored; empty text gives the zero vector.
func (v *Vectorizer) Transform(text string) FeatureVector {
	counts := make(map[int]float64)
	for _, term := range analyze(text, v.opts) {
		if idx, ok := v.index[term]; ok {
			counts[idx]++
		}
	}

	fv := FeatureVector{Dim: len(v.terms)}
	if len(counts) == 0 {
		return fv
	}

	fv.Indices = make([]int, 0, len(counts))
	for idx := range counts {
		fv.Indices = append(fv.Indices, idx)
	}
	sort.Ints(fv.Indices)

	fv.Values = make([]float64, len(fv.Indices))
	for k, idx := range fv.Indices {
		fv.Values[k] = counts[idx] * v.idf[idx]
	}
	if norm := floats.Norm(fv.Values, 2); norm > 0 {
		floats.Scale(1/norm, fv.Values)
	}
	return fv
}

// TransformAll transforms each text, preserving order.
func (v *Vectorizer) TransformAll(texts []string) []FeatureVector {
	out := make([]FeatureVector, len(texts))
	for i, t := range texts {
		out[i] = v.Transform(t)
	}
	return out
}

// Dim is the vocabulary size.
func (v *Vectorizer) Dim() int { return len(v.terms) }

// Options returns the options the vocabulary was built with.
func (v *Vectorizer) Options() Options { return v.opts }

// Term returns the vocabulary term at index i.
func (v *Vectorizer) Term(i int) string { return v.terms[i] }

// Lookup returns the index of a vocabulary term.
func (v *Vectorizer) Lookup(term string) (int, bool) {
	idx, ok := v.index[term]
	return idx, ok
}

// IDF returns the inverse document frequency at index i.
func (v *Vectorizer) IDF(i int) float64 { return v.idf[i] }

// Fingerprint identifies the vocabulary and IDF table. A scorer trained on
// vectors from this vectorizer records the same value.
func (v *Vectorizer) Fingerprint() string { return v.fingerprint }

func computeFingerprint(opts Options, terms []string, idf []float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "max=%d;ngram=%d-%d\n", opts.MaxFeatures, opts.NGramMin, opts.NGramMax)
	for i, term := range terms {
		h.Write([]byte(term))
		h.Write([]byte{'\t'})
		h.Write([]byte(strconv.FormatUint(math.Float64bits(idf[i]), 16)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// State is the persisted form of a Vectorizer.
type State struct {
	Options     Options   `json:"options"`
	Vocabulary  []string  `json:"vocabulary"`
	IDF         []float64 `json:"idf"`
	DocCount    int       `json:"doc_count"`
	Fingerprint string    `json:"fingerprint"`
}

// State snapshots the vectorizer for persistence.
func (v *Vectorizer) State() State {
	return State{
		Options:     v.opts,
		Vocabulary:  append([]string(nil), v.terms...),
		IDF:         append([]float64(nil), v.idf...),
		DocCount:    v.docCount,
		Fingerprint: v.fingerprint,
	}
}

var errCorruptState = errors.New("corrupt vectorizer state")

// FromState restores a vectorizer and verifies its recorded fingerprint.
func FromState(s State) (*Vectorizer, error) {
	if len(s.Vocabulary) != len(s.IDF) {
		return nil, fmt.Errorf("%w: %d terms but %d idf values", errCorruptState, len(s.Vocabulary), len(s.IDF))
	}
	if s.Options.MaxFeatures <= 0 || s.Options.NGramMin <= 0 || s.Options.NGramMax < s.Options.NGramMin {
		return nil, fmt.Errorf("%w: invalid options %+v", errCorruptState, s.Options)
	}
	for i := 1; i < len(s.Vocabulary); i++ {
		if s.Vocabulary[i-1] >= s.Vocabulary[i] {
			return nil, fmt.Errorf("%w: vocabulary not sorted at %d", errCorruptState, i)
		}
	}

	v := newVectorizer(s.Options, append([]string(nil), s.Vocabulary...), append([]float64(nil), s.IDF...), s.DocCount)
	if s.Fingerprint != "" && s.Fingerprint != v.fingerprint {
		return nil, fmt.Errorf("%w: fingerprint mismatch", errCorruptState)
	}
	return v, nil
}
