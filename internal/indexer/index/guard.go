package index

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/resilience"
)

type guardedIndex struct {
	FieldIndex
	cb *resilience.CircuitBreaker
}

// Guard wraps fi so posting-list reads go through cb. While the breaker is
// open reads fail immediately with ErrIndexUnavailable instead of waiting on
// a broken backend. Statistics lookups are not guarded.
func Guard(fi FieldIndex, cb *resilience.CircuitBreaker) FieldIndex {
	return &guardedIndex{FieldIndex: fi, cb: cb}
}

func (g *guardedIndex) ReadPostingList(ctx context.Context, term string) (PostingList, error) {
	var postings PostingList
	err := g.cb.Execute(func() error {
		var readErr error
		postings, readErr = g.FieldIndex.ReadPostingList(ctx, term)
		return readErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexUnavailable, err)
	}
	return postings, err
}
