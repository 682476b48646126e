// Package topk keeps the K best-scoring documents of a candidate set with a
// bounded min-heap, so selecting from n candidates costs O(n log K) instead of
// a full sort.
package topk

import "container/heap"

// DefaultK is the number of candidates kept per field and after the merge.
const DefaultK = 50

// ScoredDoc is a document and its relevance score.
type ScoredDoc struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Better reports whether a ranks ahead of b: higher score first, and on equal
// scores the lower document ID first.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Collector accumulates candidates and retains the best K seen so far.
type Collector struct {
	k int
	h scoredDocHeap
}

// NewCollector creates a Collector of capacity k. k <= 0 means DefaultK.
func NewCollector(k int) *Collector {
	if k <= 0 {
		k = DefaultK
	}
	return &Collector{
		k: k,
		h: make(scoredDocHeap, 0, k),
	}
}

// Collect offers a candidate. Once the collector is full the candidate only
// replaces the current weakest entry if it ranks ahead of it.
func (c *Collector) Collect(docID uint64, score float64) {
	doc := ScoredDoc{DocID: docID, Score: score}
	if c.h.Len() < c.k {
		heap.Push(&c.h, doc)
		return
	}
	if Better(doc, c.h[0]) {
		c.h[0] = doc
		heap.Fix(&c.h, 0)
	}
}

// Len returns the number of retained candidates.
func (c *Collector) Len() int {
	return c.h.Len()
}

// Results drains the collector and returns the retained candidates best
// first. The collector is empty afterwards.
func (c *Collector) Results() []ScoredDoc {
	result := make([]ScoredDoc, c.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&c.h).(ScoredDoc)
	}
	return result
}

// Select returns the k best entries of scores, best first.
func Select(scores map[uint64]float64, k int) []ScoredDoc {
	c := NewCollector(k)
	for docID, score := range scores {
		c.Collect(docID, score)
	}
	return c.Results()
}

// scoredDocHeap is a min-heap whose root is the weakest retained document.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return Better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
