package tables

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/database"
)

func seed(t *testing.T) *database.Client {
	t.Helper()
	c, err := database.New(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "tables.db"),
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	stmts := []string{
		`CREATE TABLE page_authority (doc_id INTEGER PRIMARY KEY, score REAL NOT NULL)`,
		`CREATE TABLE page_titles (doc_id INTEGER PRIMARY KEY, title TEXT NOT NULL)`,
		`INSERT INTO page_authority (doc_id, score) VALUES (7, 10.0), (9, 0.5)`,
		`INSERT INTO page_titles (doc_id, title) VALUES (7, 'Cat'), (9, 'Dog breeds')`,
	}
	for _, s := range stmts {
		if _, err := c.DB.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return c
}

func TestLoadAuthority(t *testing.T) {
	c := seed(t)
	got, err := LoadAuthority(context.Background(), c.DB, "page_authority")
	if err != nil {
		t.Fatalf("LoadAuthority: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if v, ok := got.Authority(7); !ok || v != 10 {
		t.Errorf("Authority(7) = %v, %v", v, ok)
	}
	if _, ok := got.Authority(8); ok {
		t.Error("Authority(8) should be absent")
	}
}

func TestLoadTitles(t *testing.T) {
	c := seed(t)
	got, err := LoadTitles(context.Background(), c.DB, "page_titles")
	if err != nil {
		t.Fatalf("LoadTitles: %v", err)
	}
	if title, ok := got.Title(9); !ok || title != "Dog breeds" {
		t.Errorf("Title(9) = %q, %v", title, ok)
	}
}

func TestLoadRejectsBadTableName(t *testing.T) {
	c := seed(t)
	names := []string{"", "page_titles; DROP TABLE x", "1abc", "a.b"}
	for _, name := range names {
		if _, err := LoadTitles(context.Background(), c.DB, name); err == nil {
			t.Errorf("LoadTitles(%q) succeeded, want error", name)
		}
		if _, err := LoadAuthority(context.Background(), c.DB, name); err == nil {
			t.Errorf("LoadAuthority(%q) succeeded, want error", name)
		}
	}
}

func TestLoadMissingTable(t *testing.T) {
	c := seed(t)
	if _, err := LoadTitles(context.Background(), c.DB, "no_such_table"); err == nil {
		t.Error("expected error for missing table")
	}
}
