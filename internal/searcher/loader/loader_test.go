package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/metrics"
)

func writeSegments(t *testing.T, dir string) {
	t.Helper()
	title := index.NewMemoryIndex()
	title.AddDocument(7, []string{"cat", "dog"})
	body := index.NewMemoryIndex()
	body.AddDocument(9, []string{"cat", "tree"})
	w := segment.NewWriter(dir)
	if _, err := w.Write("title.spdx", title.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write("body.spdx", body.Snapshot()); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string) (config.IndexConfig, config.DatabaseConfig) {
	idx := config.IndexConfig{
		DataDir:         dir,
		TitleSegment:    "title.spdx",
		BodySegment:     "body.spdx",
		OpenAttempts:    2,
		OpenRetryDelay:  time.Millisecond,
		BreakerFailures: 3,
		BreakerReset:    time.Minute,
	}
	db := config.DatabaseConfig{
		Driver:         "sqlite",
		Path:           filepath.Join(dir, "tables.db"),
		AuthorityTable: "page_authority",
		TitleTable:     "page_titles",
	}
	return idx, db
}

func seedTables(t *testing.T, cfg config.DatabaseConfig) *database.Client {
	t.Helper()
	c, err := database.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	for _, s := range []string{
		`CREATE TABLE page_authority (doc_id INTEGER PRIMARY KEY, score REAL NOT NULL)`,
		`CREATE TABLE page_titles (doc_id INTEGER PRIMARY KEY, title TEXT NOT NULL)`,
		`INSERT INTO page_authority VALUES (7, 3.0), (9, 2.0)`,
		`INSERT INTO page_titles VALUES (7, '<title7>'), (9, '<title9>')`,
	} {
		if _, err := c.DB.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return c
}

func TestLoadServesQueries(t *testing.T) {
	dir := t.TempDir()
	writeSegments(t, dir)
	idxCfg, dbCfg := testConfig(dir)
	db := seedTables(t, dbCfg)
	m := metrics.New(prometheus.NewRegistry())

	l, err := Load(context.Background(), idxCfg, dbCfg, db, m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Close()

	if got := testutil.ToFloat64(m.IndexDocuments.WithLabelValues("title")); got != 1 {
		t.Errorf("title docs gauge = %v, want 1", got)
	}

	e, err := executor.New(l.Resources, executor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Search(context.Background(), "cat dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got.Results) != 2 || got.Results[0].ID != "7" || got.Results[1].ID != "9" {
		t.Errorf("results = %+v", got.Results)
	}
}

func TestOpenSegmentCorruptFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "title.spdx")
	if err := os.WriteFile(path, make([]byte, segment.HeaderSize+segment.FooterSize), 0644); err != nil {
		t.Fatal(err)
	}
	idxCfg, _ := testConfig(dir)
	idxCfg.OpenAttempts = 5
	idxCfg.OpenRetryDelay = time.Hour

	_, err := OpenSegment(context.Background(), path, idxCfg)
	if !errors.Is(err, segment.ErrCorruptSegment) {
		t.Fatalf("err = %v, want ErrCorruptSegment without retrying", err)
	}
}

func TestOpenSegmentRetriesMissingFile(t *testing.T) {
	staging := t.TempDir()
	writeSegments(t, staging)
	dir := t.TempDir()
	idxCfg, _ := testConfig(dir)
	idxCfg.OpenAttempts = 50
	idxCfg.OpenRetryDelay = 5 * time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.Rename(filepath.Join(staging, "title.spdx"), filepath.Join(dir, "title.spdx"))
	}()
	r, err := OpenSegment(context.Background(), filepath.Join(dir, "title.spdx"), idxCfg)
	if err != nil {
		t.Fatalf("OpenSegment: %v", err)
	}
	r.Close()
}

func TestLoadMissingTables(t *testing.T) {
	dir := t.TempDir()
	writeSegments(t, dir)
	idxCfg, dbCfg := testConfig(dir)
	db, err := database.New(dbCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := Load(context.Background(), idxCfg, dbCfg, db, nil); err == nil {
		t.Fatal("expected error when tables are missing")
	}
}
