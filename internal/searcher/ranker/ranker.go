// Package ranker scores one field's candidate documents for a tokenized query.
package ranker

import (
	"context"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/topk"
)

// Authority reports the precomputed authority score of a document.
type Authority interface {
	Authority(docID uint64) (float64, bool)
}

// Scorer holds the knobs of field scoring. The zero value is not useful;
// use NewScorer or DefaultScorer.
type Scorer struct {
	// K is the number of documents kept per field.
	K int
	// BoostPerOccurrence adds the authority boost once for every posting
	// processed. When false the boost is added once per candidate document.
	BoostPerOccurrence bool
}

// NewScorer returns a Scorer keeping k documents per field, falling back to
// topk.DefaultK when k is not positive.
func NewScorer(k int, boostPerOccurrence bool) Scorer {
	if k <= 0 {
		k = topk.DefaultK
	}
	return Scorer{K: k, BoostPerOccurrence: boostPerOccurrence}
}

// DefaultScorer keeps topk.DefaultK documents and boosts per occurrence.
func DefaultScorer() Scorer {
	return NewScorer(topk.DefaultK, true)
}

// ScoreField ranks field's documents for tokens with the default scorer
// settings, keeping the best k.
func ScoreField(ctx context.Context, tokens []string, field index.FieldIndex, authority Authority, k int) ([]topk.ScoredDoc, error) {
	return NewScorer(k, true).Score(ctx, tokens, field, authority)
}

// Score accumulates, for every token occurrence and every posting of that
// token, idf*tf*(k1+1)/(tf+norm) plus the document's authority boost, then
// selects the top K. Repeated tokens contribute once per occurrence while
// their posting list is read only once.
func (s Scorer) Score(ctx context.Context, tokens []string, field index.FieldIndex, authority Authority) ([]topk.ScoredDoc, error) {
	if len(tokens) == 0 {
		return []topk.ScoredDoc{}, nil
	}
	idf := QueryIDF(tokens, field)
	postings := make(map[string]index.PostingList, len(idf))
	scores := make(map[uint64]float64)

	for _, term := range tokens {
		list, ok := postings[term]
		if !ok {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var err error
			list, err = field.ReadPostingList(ctx, term)
			if err != nil {
				return nil, fmt.Errorf("reading postings for %q: %w", term, err)
			}
			postings[term] = list
		}
		weight := idf[term]
		for _, p := range list {
			tf := float64(p.TermFreq)
			scores[p.DocID] += weight * tf * (index.K1 + 1) / (tf + field.FieldLengthNorm(p.DocID))
			if s.BoostPerOccurrence {
				scores[p.DocID] += authorityBoost(authority, p.DocID)
			}
		}
	}

	if !s.BoostPerOccurrence {
		for docID := range scores {
			scores[docID] += authorityBoost(authority, docID)
		}
	}

	k := s.K
	if k <= 0 {
		k = topk.DefaultK
	}
	return topk.Select(scores, k), nil
}

// QueryIDF returns the inverse document frequency of every distinct token.
// Terms the field has never seen get the largest weight the formula yields.
func QueryIDF(tokens []string, field index.FieldIndex) map[string]float64 {
	n := field.DocumentCount()
	idf := make(map[string]float64, len(tokens))
	for _, term := range tokens {
		if _, seen := idf[term]; seen {
			continue
		}
		idf[term] = computeIDF(n, field.DocumentFrequency(term))
	}
	return idf
}

func computeIDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// authorityBoost is log10 of the document's authority, or 0 when the table
// has no positive value for it.
func authorityBoost(authority Authority, docID uint64) float64 {
	if authority == nil {
		return 0
	}
	a, ok := authority.Authority(docID)
	if !ok || a <= 0 {
		return 0
	}
	return math.Log10(a)
}
