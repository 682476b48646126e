package index

import "context"

// BM25 saturation and length-normalisation parameters the stored field
// length norms are computed with.
const (
	K1 = 1.5
	B  = 0.75
)

type Posting struct {
	DocID    uint64 `json:"d"`
	TermFreq int    `json:"f"`
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

type DocNorm struct {
	DocID uint64  `json:"d"`
	Norm  float64 `json:"n"`
}

// Snapshot is the complete, sorted content of one field index.
type Snapshot struct {
	DocCount int
	Terms    []TermEntry
	Norms    []DocNorm
}

// FieldIndex is the read-only view of one field's inverted index that the
// ranker scores against. Implementations must be safe for concurrent use.
type FieldIndex interface {
	// DocumentCount is N, the number of documents in the field.
	DocumentCount() int
	// DocumentFrequency is the number of documents containing term, 0 if unseen.
	DocumentFrequency(term string) int
	// FieldLengthNorm is the precomputed k1*(1-b+b*len/avgLen) for docID.
	FieldLengthNorm(docID uint64) float64
	// ReadPostingList returns the postings of term; an unseen term yields an
	// empty list and no error.
	ReadPostingList(ctx context.Context, term string) (PostingList, error)
}

// LengthNorm returns k1*(1-b+b*docLen/avgDocLen), the denominator term of
// the BM25 saturation function. A zero average yields k1.
func LengthNorm(docLen, avgDocLen float64) float64 {
	if avgDocLen <= 0 {
		return K1
	}
	return K1 * (1 - B + B*docLen/avgDocLen)
}
