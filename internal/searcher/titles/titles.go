// Package titles turns a ranked list of document IDs into the (id, title)
// pairs returned to callers.
package titles

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/errors"
)

// Lookup resolves a document ID to its display title.
type Lookup interface {
	Title(docID uint64) (string, bool)
}

// MissingPolicy decides what happens when a ranked document has no title.
type MissingPolicy string

const (
	// MissingFail fails the whole query with ErrMissingTitle.
	MissingFail MissingPolicy = "fail"
	// MissingPlaceholder substitutes the configured placeholder and logs a
	// warning.
	MissingPlaceholder MissingPolicy = "placeholder"
)

func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(s) {
	case "", MissingFail:
		return MissingFail, nil
	case MissingPlaceholder:
		return MissingPlaceholder, nil
	default:
		return "", fmt.Errorf("unknown missing title policy %q", s)
	}
}

type Result struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Mapper struct {
	lookup      Lookup
	policy      MissingPolicy
	placeholder string
	logger      *slog.Logger
}

func NewMapper(lookup Lookup, policy MissingPolicy, placeholder string) *Mapper {
	if policy == "" {
		policy = MissingFail
	}
	return &Mapper{
		lookup:      lookup,
		policy:      policy,
		placeholder: placeholder,
		logger:      slog.Default().With("component", "title-mapper"),
	}
}

// Map resolves every ranked document in order. Entries are never dropped.
func (m *Mapper) Map(ranked []topk.ScoredDoc) ([]Result, error) {
	results := make([]Result, 0, len(ranked))
	for _, doc := range ranked {
		id := strconv.FormatUint(doc.DocID, 10)
		title, ok := m.lookup.Title(doc.DocID)
		if !ok {
			if m.policy != MissingPlaceholder {
				return nil, fmt.Errorf("document %s: %w", id, apperrors.ErrMissingTitle)
			}
			m.logger.Warn("ranked document has no title", "doc_id", id)
			title = m.placeholder
		}
		results = append(results, Result{ID: id, Title: title})
	}
	return results, nil
}
