// Package merger combines the title and body rankings of one query into a
// single ranking, weighting each field by how long the query is.
package merger

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/topk"
)

// Weights are the per-field multipliers applied before combining scores.
type Weights struct {
	Title float64 `json:"title" yaml:"title"`
	Body  float64 `json:"body" yaml:"body"`
}

// Policy chooses Weights by query token count. Queries with fewer than
// ShortQueryTokens tokens use Short; all others use Long.
type Policy struct {
	ShortQueryTokens int
	Short            Weights
	Long             Weights
}

// DefaultPolicy favours titles for one and two token queries and bodies for
// everything longer.
func DefaultPolicy() Policy {
	return Policy{
		ShortQueryTokens: 3,
		Short:            Weights{Title: 0.9, Body: 0.1},
		Long:             Weights{Title: 0.1, Body: 0.9},
	}
}

// WeightsFor returns the weights for a query of tokenCount tokens.
func (p Policy) WeightsFor(tokenCount int) Weights {
	if tokenCount < p.ShortQueryTokens {
		return p.Short
	}
	return p.Long
}

// Validate reports a negative threshold, or a weight pair that is negative or
// does not sum to 1.
func (p Policy) Validate() error {
	if p.ShortQueryTokens < 0 {
		return fmt.Errorf("short query threshold must be non-negative, got %d", p.ShortQueryTokens)
	}
	for _, f := range []struct {
		name string
		w    Weights
	}{{"short", p.Short}, {"long", p.Long}} {
		name, w := f.name, f.w
		if w.Title < 0 || w.Body < 0 {
			return fmt.Errorf("%s weights must be non-negative, got title=%v body=%v", name, w.Title, w.Body)
		}
		if math.Abs(w.Title+w.Body-1) > 1e-9 {
			return fmt.Errorf("%s weights must sum to 1, got %v", name, w.Title+w.Body)
		}
	}
	return nil
}

// Merge computes titleWeight*titleScore + bodyWeight*bodyScore for every
// document in either ranking, a missing side counting as 0, and keeps the
// best k.
func (p Policy) Merge(title, body []topk.ScoredDoc, tokenCount, k int) []topk.ScoredDoc {
	w := p.WeightsFor(tokenCount)
	combined := make(map[uint64]float64, len(title)+len(body))
	for _, doc := range title {
		combined[doc.DocID] += w.Title * doc.Score
	}
	for _, doc := range body {
		combined[doc.DocID] += w.Body * doc.Score
	}
	return topk.Select(combined, k)
}

// Merge combines two rankings with DefaultPolicy.
func Merge(title, body []topk.ScoredDoc, tokenCount, k int) []topk.ScoredDoc {
	return DefaultPolicy().Merge(title, body, tokenCount, k)
}
