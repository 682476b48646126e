package index

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is an in-process FieldIndex. It is filled once (AddDocument,
// AddPosting, SetLengthNorm) and then queried; reads take a shared lock.
type MemoryIndex struct {
	mu          sync.RWMutex
	index       map[string]map[uint64]int
	docs        map[uint64]struct{}
	docLengths  map[uint64]int
	norms       map[uint64]float64
	totalTokens int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:      make(map[string]map[uint64]int),
		docs:       make(map[uint64]struct{}),
		docLengths: make(map[uint64]int),
		norms:      make(map[uint64]float64),
	}
}

// AddDocument indexes an already tokenized field value. Re-adding a docID
// replaces its previous terms.
func (m *MemoryIndex) AddDocument(docID uint64, terms []string) {
	termFreq := make(map[string]int)
	for _, term := range terms {
		termFreq[term]++
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, exists := m.docLengths[docID]; exists {
		m.removeLocked(docID)
		m.totalTokens -= int64(prev)
	}
	for term, tf := range termFreq {
		docs, exists := m.index[term]
		if !exists {
			docs = make(map[uint64]int)
			m.index[term] = docs
		}
		docs[docID] = tf
	}
	m.docs[docID] = struct{}{}
	m.docLengths[docID] = len(terms)
	m.totalTokens += int64(len(terms))
}

// AddPosting records a precomputed posting without document-length
// information. Pair it with SetLengthNorm.
func (m *MemoryIndex) AddPosting(term string, docID uint64, termFreq int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, exists := m.index[term]
	if !exists {
		docs = make(map[uint64]int)
		m.index[term] = docs
	}
	docs[docID] = termFreq
	m.docs[docID] = struct{}{}
}

// SetLengthNorm overrides the computed field length norm of docID.
func (m *MemoryIndex) SetLengthNorm(docID uint64, norm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.norms[docID] = norm
	m.docs[docID] = struct{}{}
}

func (m *MemoryIndex) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) DocumentFrequency(term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index[term])
}

// FieldLengthNorm returns the explicit norm when one was set, otherwise the
// BM25 norm from the document's token count. Documents without length
// information are treated as average length.
func (m *MemoryIndex) FieldLengthNorm(docID uint64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.normLocked(docID)
}

func (m *MemoryIndex) ReadPostingList(ctx context.Context, term string) (PostingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil, nil
	}
	return sortedPostings(docs), nil
}

// Snapshot returns the full index content sorted by term and document ID, in
// the shape the segment writer persists.
func (m *MemoryIndex) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: sortedPostings(docs),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	norms := make([]DocNorm, 0, len(m.docs))
	for docID := range m.docs {
		norms = append(norms, DocNorm{DocID: docID, Norm: m.normLocked(docID)})
	}
	sort.Slice(norms, func(i, j int) bool {
		return norms[i].DocID < norms[j].DocID
	})
	return Snapshot{
		DocCount: len(m.docs),
		Terms:    entries,
		Norms:    norms,
	}
}

func (m *MemoryIndex) normLocked(docID uint64) float64 {
	if norm, ok := m.norms[docID]; ok {
		return norm
	}
	if len(m.docLengths) == 0 {
		return K1
	}
	avg := float64(m.totalTokens) / float64(len(m.docLengths))
	docLen, ok := m.docLengths[docID]
	if !ok {
		return LengthNorm(avg, avg)
	}
	return LengthNorm(float64(docLen), avg)
}

func (m *MemoryIndex) removeLocked(docID uint64) {
	for term, docs := range m.index {
		if _, ok := docs[docID]; ok {
			delete(docs, docID)
			if len(docs) == 0 {
				delete(m.index, term)
			}
		}
	}
}

func sortedPostings(docs map[uint64]int) PostingList {
	result := make(PostingList, 0, len(docs))
	for docID, tf := range docs {
		result = append(result, Posting{DocID: docID, TermFreq: tf})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}
