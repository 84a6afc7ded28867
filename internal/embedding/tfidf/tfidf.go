package tfidf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Embedder implements a simple TF-IDF vectorizer.
// A fitted Embedder is immutable; Fit always returns a new value.
type Embedder struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
	stopwords  map[string]struct{}
}

// NewEmbedder creates an unfitted TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Dimension is the vocabulary size, zero before Fit.
func (e *Embedder) Dimension() int { return len(e.terms) }

func (e *Embedder) Fitted() bool { return len(e.terms) > 0 }

// Fit builds the vocabulary and smoothed IDF values from corpus.
func (e *Embedder) Fit(ctx context.Context, corpus []string) (domain.Embedder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("empty corpus for TF-IDF fit")
	}
	df := make(map[string]int)
	for i, text := range corpus {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return newFitted(terms, idf, e.stopwords), nil
}

func newFitted(terms []string, idf []float64, stopwords map[string]struct{}) *Embedder {
	vocab := make(map[string]int, len(terms))
	for i, t := range terms {
		vocab[t] = i
	}
	return &Embedder{vocabulary: vocab, terms: terms, idf: idf, stopwords: stopwords}
}

// Embed computes the L2-normalized TF-IDF vector for text. Text without any
// known term maps to the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if !e.Fitted() {
		return nil, errors.New("tfidf embedder not fitted")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make(domain.Vector, len(e.terms))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type state struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// MarshalBinary encodes the fitted vocabulary so a persisted index can embed
// queries in the same space it was built in.
func (e *Embedder) MarshalBinary() ([]byte, error) {
	if !e.Fitted() {
		return nil, errors.New("tfidf embedder not fitted")
	}
	return json.Marshal(state{Terms: e.terms, IDF: e.idf})
}

// UnmarshalBinary restores a vocabulary written by MarshalBinary.
func (e *Embedder) UnmarshalBinary(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode tfidf state: %w", err)
	}
	if len(s.Terms) == 0 || len(s.Terms) != len(s.IDF) {
		return fmt.Errorf("decode tfidf state: %d terms, %d idf values", len(s.Terms), len(s.IDF))
	}
	stop := e.stopwords
	if stop == nil {
		stop = defaultStopwords()
	}
	*e = *newFitted(s.Terms, s.IDF, stop)
	return nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
