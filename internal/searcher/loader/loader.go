// Package loader performs the one-time startup phase of the search service:
// it opens both field segments, loads the authority and title tables, and
// assembles the read-only resources the executor runs against.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/tables"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/resilience"
)

// Loaded owns everything opened at startup.
type Loaded struct {
	Resources executor.Resources
	Title     *segment.Reader
	Body      *segment.Reader
	Breakers  []*resilience.CircuitBreaker
}

func (l *Loaded) Close() error {
	return errors.Join(l.Title.Close(), l.Body.Close())
}

// OpenSegment opens the segment at path, retrying transient failures such as
// a file that is still being copied into place. Corrupt segments fail at once.
func OpenSegment(ctx context.Context, path string, cfg config.IndexConfig) (*segment.Reader, error) {
	var reader *segment.Reader
	err := resilience.Retry(ctx, "open segment "+filepath.Base(path), resilience.RetryConfig{
		MaxAttempts:  cfg.OpenAttempts,
		InitialDelay: cfg.OpenRetryDelay,
		Retryable: func(err error) bool {
			return !errors.Is(err, segment.ErrCorruptSegment)
		},
	}, func() error {
		r, err := segment.OpenReader(path)
		if err != nil {
			return err
		}
		reader = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// Load opens the title and body segments under idx.DataDir and reads the
// authority and title tables from db in one snapshot, so both describe the
// same corpus state. m may be nil.
func Load(ctx context.Context, idx config.IndexConfig, dbCfg config.DatabaseConfig, db *database.Client, m *metrics.Metrics) (*Loaded, error) {
	logger := slog.Default().With("component", "loader")

	title, err := OpenSegment(ctx, filepath.Join(idx.DataDir, idx.TitleSegment), idx)
	if err != nil {
		return nil, fmt.Errorf("opening title segment: %w", err)
	}
	body, err := OpenSegment(ctx, filepath.Join(idx.DataDir, idx.BodySegment), idx)
	if err != nil {
		title.Close()
		return nil, fmt.Errorf("opening body segment: %w", err)
	}
	l := &Loaded{Title: title, Body: body}

	var (
		authority  tables.AuthorityTable
		titleTable tables.TitleTable
	)
	err = db.ReadSnapshot(ctx, func(tx *sql.Tx) error {
		var err error
		if authority, err = tables.LoadAuthority(ctx, tx, dbCfg.AuthorityTable); err != nil {
			return fmt.Errorf("loading authority table: %w", err)
		}
		if titleTable, err = tables.LoadTitles(ctx, tx, dbCfg.TitleTable); err != nil {
			return fmt.Errorf("loading title table: %w", err)
		}
		return nil
	})
	if err != nil {
		l.Close()
		return nil, err
	}

	titleCB := newBreaker("index-title", idx, m)
	bodyCB := newBreaker("index-body", idx, m)
	l.Breakers = []*resilience.CircuitBreaker{titleCB, bodyCB}
	l.Resources = executor.Resources{
		Title:     index.Guard(title, titleCB),
		Body:      index.Guard(body, bodyCB),
		Authority: authority,
		Titles:    titleTable,
	}

	if m != nil {
		m.IndexDocuments.WithLabelValues("title").Set(float64(title.DocumentCount()))
		m.IndexDocuments.WithLabelValues("body").Set(float64(body.DocumentCount()))
	}
	logger.Info("search resources loaded",
		"driver", db.Driver(),
		"title_docs", title.DocumentCount(),
		"title_terms", title.Terms(),
		"body_docs", body.DocumentCount(),
		"body_terms", body.Terms(),
		"authority_rows", len(authority),
		"title_rows", len(titleTable),
	)
	return l, nil
}

func newBreaker(name string, idx config.IndexConfig, m *metrics.Metrics) *resilience.CircuitBreaker {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: idx.BreakerFailures,
		ResetTimeout:     idx.BreakerReset,
	}
	if m != nil {
		cfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(resilience.StateClosed))
	}
	return resilience.NewCircuitBreaker(name, cfg)
}
