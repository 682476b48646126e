// Package tables holds the read-only per-document lookup tables the ranking
// path consults: authority scores and display titles. Both are loaded once at
// startup and never mutated afterwards.
package tables

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// AuthorityTable maps a document ID to its authority score.
type AuthorityTable map[uint64]float64

func (t AuthorityTable) Authority(docID uint64) (float64, bool) {
	v, ok := t[docID]
	return v, ok
}

// TitleTable maps a document ID to its display title.
type TitleTable map[uint64]string

func (t TitleTable) Title(docID uint64) (string, bool) {
	v, ok := t[docID]
	return v, ok
}

// Querier is satisfied by *sql.DB and *sql.Tx, so both tables can be read
// inside one snapshot transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// LoadAuthority reads doc_id and score columns from the named table.
func LoadAuthority(ctx context.Context, db Querier, table string) (AuthorityTable, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid authority table name %q", table)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT doc_id, score FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	result := make(AuthorityTable)
	for rows.Next() {
		var (
			docID int64
			score float64
		)
		if err := rows.Scan(&docID, &score); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		if docID < 0 {
			return nil, fmt.Errorf("negative doc_id %d in %s", docID, table)
		}
		result[uint64(docID)] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return result, nil
}

// LoadTitles reads doc_id and title columns from the named table.
func LoadTitles(ctx context.Context, db Querier, table string) (TitleTable, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid title table name %q", table)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT doc_id, title FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	result := make(TitleTable)
	for rows.Next() {
		var (
			docID int64
			title string
		)
		if err := rows.Scan(&docID, &title); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		if docID < 0 {
			return nil, fmt.Errorf("negative doc_id %d in %s", docID, table)
		}
		result[uint64(docID)] = title
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return result, nil
}
