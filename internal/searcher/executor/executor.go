// Package executor runs a query end to end: tokenize, score the title and
// body fields concurrently, merge the two rankings and resolve titles.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/titles"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/tracing"
)

// Resources are the read-only collaborators every query uses. They are built
// once at startup and must not be mutated while the Executor serves queries.
type Resources struct {
	Title     index.FieldIndex
	Body      index.FieldIndex
	Authority ranker.Authority
	Titles    titles.Lookup
}

type Options struct {
	Policy merger.Policy
	// TopK bounds the per-field rankings and the merged ranking.
	TopK int
	// QueryTimeout cancels both field tasks when exceeded. Zero disables it.
	QueryTimeout time.Duration
	// BoostOncePerDocument adds the authority boost once per candidate
	// instead of once per matching posting.
	BoostOncePerDocument bool
	Tokenizer            *tokenizer.Tokenizer
	MissingTitles        titles.MissingPolicy
	MissingPlaceholder   string
	Metrics              *metrics.Metrics
}

func DefaultOptions() Options {
	return Options{
		Policy:        merger.DefaultPolicy(),
		TopK:          topk.DefaultK,
		MissingTitles: titles.MissingFail,
	}
}

type SearchResult struct {
	Query     string          `json:"query"`
	Terms     []string        `json:"terms"`
	Results   []titles.Result `json:"results"`
	LatencyMs int64           `json:"latency_ms"`
}

type Executor struct {
	res       Resources
	opts      Options
	scorer    ranker.Scorer
	tokenizer *tokenizer.Tokenizer
	mapper    *titles.Mapper
	logger    *slog.Logger
}

func New(res Resources, opts Options) (*Executor, error) {
	switch {
	case res.Title == nil:
		return nil, fmt.Errorf("%w: title index is required", apperrors.ErrInvalidInput)
	case res.Body == nil:
		return nil, fmt.Errorf("%w: body index is required", apperrors.ErrInvalidInput)
	case res.Authority == nil:
		return nil, fmt.Errorf("%w: authority table is required", apperrors.ErrInvalidInput)
	case res.Titles == nil:
		return nil, fmt.Errorf("%w: title lookup is required", apperrors.ErrInvalidInput)
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: merge policy: %v", apperrors.ErrInvalidInput, err)
	}
	if opts.TopK <= 0 {
		opts.TopK = topk.DefaultK
	}
	tok := opts.Tokenizer
	if tok == nil {
		tok = tokenizer.New()
	}
	return &Executor{
		res:       res,
		opts:      opts,
		scorer:    ranker.NewScorer(opts.TopK, !opts.BoostOncePerDocument),
		tokenizer: tok,
		mapper:    titles.NewMapper(res.Titles, opts.MissingTitles, opts.MissingPlaceholder),
		logger:    slog.Default().With("component", "query-executor"),
	}, nil
}

// Fingerprint identifies every setting that changes what Search returns for a
// given token sequence: merge policy, K, boost mode, stop-words and the
// missing-title handling. Result caches key on it.
func (e *Executor) Fingerprint() string {
	p := e.opts.Policy
	raw := fmt.Sprintf("v1|short=%d|sw=%g/%g|lw=%g/%g|k=%d|boost_once=%t|stop=%s|missing=%s/%q",
		p.ShortQueryTokens, p.Short.Title, p.Short.Body, p.Long.Title, p.Long.Body,
		e.opts.TopK, e.opts.BoostOncePerDocument, e.tokenizer.Fingerprint(),
		e.opts.MissingTitles, e.opts.MissingPlaceholder)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// Terms returns the tokens Search would score for query.
func (e *Executor) Terms(query string) []string {
	return e.tokenizer.Tokenize(query)
}

// Search answers query with at most TopK (id, title) pairs, best first.
// Either field failing fails the whole query. An empty or all-stopword query
// yields an empty result and no error.
func (e *Executor) Search(ctx context.Context, query string) (*SearchResult, error) {
	start := time.Now()
	log := e.log(ctx)
	terms := e.tokenizer.Tokenize(query)
	if len(terms) == 0 {
		e.observe("zero_result", 0)
		return &SearchResult{
			Query:   query,
			Terms:   terms,
			Results: []titles.Result{},
		}, nil
	}

	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	span.SetAttr("terms", len(terms))

	ranked, err := resilience.Call(ctx, e.opts.QueryTimeout, "search", func(ctx context.Context) ([]topk.ScoredDoc, error) {
		return e.rank(ctx, terms)
	})
	if err != nil {
		return nil, e.fail(ctx, span, query, terms, err)
	}

	_, mapSpan := tracing.StartChildSpan(ctx, "map_titles")
	results, err := e.mapper.Map(ranked)
	mapSpan.End()
	if err != nil {
		return nil, e.fail(ctx, span, query, terms, err)
	}

	span.End()
	latency := time.Since(start)
	span.Log(ctx, log)
	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	e.observe(resultType, len(results))
	log.Info("query executed",
		"query", query,
		"terms", terms,
		"results", len(results),
		"latency_ms", latency.Milliseconds(),
	)
	return &SearchResult{
		Query:     query,
		Terms:     terms,
		Results:   results,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

func (e *Executor) fail(ctx context.Context, span *tracing.Span, query string, terms []string, err error) error {
	e.observe("error", 0)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	span.SetError(err)
	span.End()
	log := e.log(ctx)
	span.Log(ctx, log)
	log.Error("query failed", "query", query, "terms", terms, "error", err)
	return err
}

// rank scores both fields concurrently and merges them. Both tasks must
// finish; the first failure cancels the other.
func (e *Executor) rank(ctx context.Context, terms []string) ([]topk.ScoredDoc, error) {
	var titleRanked, bodyRanked []topk.ScoredDoc
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		titleRanked, err = e.scoreField(gctx, "title", terms, e.res.Title)
		return err
	})
	g.Go(func() error {
		var err error
		bodyRanked, err = e.scoreField(gctx, "body", terms, e.res.Body)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	_, span := tracing.StartChildSpan(ctx, "merge")
	defer span.End()
	merged := e.opts.Policy.Merge(titleRanked, bodyRanked, len(terms), e.opts.TopK)
	span.SetAttr("candidates", len(titleRanked)+len(bodyRanked))
	return merged, nil
}

func (e *Executor) scoreField(ctx context.Context, field string, terms []string, fi index.FieldIndex) ([]topk.ScoredDoc, error) {
	ctx, span := tracing.StartChildSpan(ctx, "score_"+field)
	defer span.End()
	start := time.Now()

	ranked, err := e.scorer.Score(ctx, terms, fi, e.res.Authority)
	if e.opts.Metrics != nil {
		e.opts.Metrics.FieldScoreLatency.WithLabelValues(field).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", field, err)
	}
	span.SetAttr("ranked", len(ranked))
	return ranked, nil
}

func (e *Executor) log(ctx context.Context) *slog.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return e.logger.With("request_id", id)
	}
	return e.logger
}

func (e *Executor) observe(resultType string, results int) {
	if e.opts.Metrics == nil {
		return
	}
	e.opts.Metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" {
		e.opts.Metrics.SearchResultsCount.Observe(float64(results))
	}
}
