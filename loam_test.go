package loam

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/migrate"
	"github.com/loamdb/loam/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bookModel() Model {
	return Model{Table: "book", Columns: []ColumnDef{PK("id"), Text("title")}}
}

func bookModelWithYear() Model {
	m := bookModel()
	m.Columns = append(m.Columns, Integer("year"))
	return m
}

func setupDB(t *testing.T, cfg Config) *DB {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	db, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func introspect(t *testing.T, db *DB) schema.Snapshot {
	t.Helper()
	snap, err := catalog.Read(context.Background(), db.db)
	if err != nil {
		t.Fatalf("introspecting: %v", err)
	}
	return snap
}

func TestOpenRejectsMemoryDatabases(t *testing.T) {
	for _, path := range []string{"", ":memory:", "file::memory:?cache=shared", "file:x.db?mode=memory"} {
		if _, err := Open(path); err == nil {
			t.Errorf("Open(%q) succeeded, want error", path)
		}
	}
}

func TestSetupCreatesDeclaredTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loam.db")
	db := setupDB(t, Config{Path: path, Models: []Model{bookModel()}})

	snap := introspect(t, db)
	book, ok := snap["book"]
	if !ok {
		t.Fatal("book table not created")
	}
	if !book.HasColumn("id") || !book.HasColumn("title") {
		t.Errorf("book columns = %+v, want id and title", book.Columns)
	}

	// The live schema now matches the models exactly.
	plan, err := db.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.Empty() {
		t.Errorf("plan after setup = %v, want empty", plan.Describe())
	}
}

func TestSetupIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loam.db")
	first := setupDB(t, Config{Path: path, Models: []Model{bookModel()}})
	if _, err := first.Query("book").Insert(context.Background(), Row{"title": "Dune"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	first.Close()

	second := setupDB(t, Config{Path: path, Models: []Model{bookModel()}})
	n, err := second.Query("book").Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count after second setup = %d, want 1", n)
	}
}

func TestSetupAddsDeclaredColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loam.db")
	setupDB(t, Config{Path: path, Models: []Model{bookModel()}}).Close()

	db := setupDB(t, Config{Path: path, Models: []Model{bookModelWithYear()}})
	book := introspect(t, db)["book"]
	if !book.HasColumn("year") {
		t.Errorf("book columns = %+v, want year added", book.Columns)
	}
}

func TestSetupDropsRemovedColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loam.db")
	setupDB(t, Config{Path: path, Models: []Model{bookModelWithYear()}}).Close()

	db := setupDB(t, Config{Path: path, Models: []Model{bookModel()}})
	book := introspect(t, db)["book"]
	if book.HasColumn("year") {
		t.Error("year column survived removal from the model")
	}
	if !book.HasColumn("id") || !book.HasColumn("title") {
		t.Errorf("book columns = %+v, want id and title intact", book.Columns)
	}
}

func TestSetupWithMigrationsRunsArtifactsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loam.db")
	migrations := filepath.Join(dir, "migrations")

	registry, err := NewRegistry(bookModel())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	diff := schema.Compare(schema.Snapshot{}, registry.Target())
	if _, err := (migrate.Writer{Dir: migrations}).Write(diff, "create book"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The author model has no artifact; with a migrations directory
	// configured it must not be auto-applied.
	author := Model{Table: "author", Columns: []ColumnDef{PK("id"), Text("name")}}
	db := setupDB(t, Config{
		Path:          path,
		Models:        []Model{bookModel(), author},
		MigrationsDir: migrations,
	})

	snap := introspect(t, db)
	if _, ok := snap["book"]; !ok {
		t.Error("book table not created from artifact")
	}
	if _, ok := snap["author"]; ok {
		t.Error("author table created without an artifact")
	}

	records, err := migrate.AppliedRecords(context.Background(), db.db)
	if err != nil {
		t.Fatalf("AppliedRecords: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d bookkeeping rows, want 1", len(records))
	}
}

func TestSetupAutoApplyWritesNoBookkeeping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loam.db")
	db := setupDB(t, Config{Path: path, Models: []Model{bookModel()}})

	var n int
	err := db.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, schema.ReservedTable).Scan(&n)
	if err != nil {
		t.Fatalf("checking bookkeeping table: %v", err)
	}
	if n != 0 {
		t.Errorf("auto-apply created %s", schema.ReservedTable)
	}
}

func TestSetupSurfacesModelErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loam.db")
	_, err := Setup(context.Background(), Config{
		Path:   path,
		Models: []Model{{Table: "empty"}},
		Logger: testLogger(),
	})
	if err == nil {
		t.Fatal("Setup accepted an invalid model")
	}
}
