package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"

	"github.com/loamdb/loam/internal/config"
	"github.com/loamdb/loam/migrate"
	"github.com/loamdb/loam/schema"
)

// testServer creates a Server over a fresh database in a temp dir.
func testServer(t *testing.T, opts ...Option) (*Server, *sql.DB, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Version:  config.CurrentVersion,
		Database: filepath.Join(dir, "loam.db"),
		Schema:   filepath.Join(dir, "schema.yaml"),
	}
	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(db, cfg, logger, 0, opts...)
	return s, db, cfg
}

// serveMux creates an http.ServeMux with the server's routes registered.
func serveMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func mustExec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

func snapBook() schema.Snapshot {
	return schema.Snapshot{
		"book": &schema.Table{
			Name: "book",
			Columns: []schema.Column{
				{Name: "id", Type: schema.TypeInteger, PrimaryKey: true},
				{Name: "title", Type: schema.TypeText, NotNull: true},
			},
			PrimaryKey: []string{"id"},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := testServer(t)
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestStatusFreshDatabase(t *testing.T) {
	s, _, cfg := testServer(t)
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatusResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Database != cfg.Database {
		t.Errorf("database = %q, want %q", resp.Database, cfg.Database)
	}
	if resp.Mode != "auto-apply" {
		t.Errorf("mode = %q, want %q", resp.Mode, "auto-apply")
	}
	if len(resp.Applied) != 0 || len(resp.Pending) != 0 {
		t.Errorf("applied = %d, pending = %d, want both 0", len(resp.Applied), len(resp.Pending))
	}
}

func TestStatusWithHistory(t *testing.T) {
	s, db, cfg := testServer(t)
	cfg.Migrations = filepath.Join(t.TempDir(), "migrations")

	writer := migrate.Writer{Dir: cfg.Migrations}
	first, err := writer.Write(schema.Compare(schema.Snapshot{}, snapBook()), "create book")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	runner := &migrate.Runner{DB: db, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if _, err := runner.Run(context.Background(), []*migrate.Artifact{first}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := writer.WriteSkeleton("add year"); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}

	mux := serveMux(s)
	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatusResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Mode != "migrations" {
		t.Errorf("mode = %q, want %q", resp.Mode, "migrations")
	}
	if len(resp.Applied) != 1 {
		t.Fatalf("applied = %d, want 1", len(resp.Applied))
	}
	if resp.Applied[0].Identifier != first.Identifier {
		t.Errorf("applied identifier = %q, want %q", resp.Applied[0].Identifier, first.Identifier)
	}
	if resp.Applied[0].AppliedAt == "" {
		t.Error("applied_at is empty")
	}
	if len(resp.Pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(resp.Pending))
	}
	if resp.Pending[0].Description != "add year" {
		t.Errorf("pending description = %q, want %q", resp.Pending[0].Description, "add year")
	}
}

func TestStatusMissingMigrationsDir(t *testing.T) {
	s, _, cfg := testServer(t)
	cfg.Migrations = filepath.Join(t.TempDir(), "never-created")
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatusResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Pending) != 0 {
		t.Errorf("pending = %d, want 0", len(resp.Pending))
	}
}

func TestSchemaEndpoint(t *testing.T) {
	s, db, _ := testServer(t)
	mustExec(t, db,
		`CREATE TABLE book (id INTEGER PRIMARY KEY, title TEXT NOT NULL)`,
		`CREATE UNIQUE INDEX uniq_book_title ON book (title)`,
	)
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/schema", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SchemaResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(resp.Tables))
	}
	table := resp.Tables[0]
	if table.Name != "book" {
		t.Errorf("table = %q, want %q", table.Name, "book")
	}
	if len(table.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(table.Columns))
	}
	if table.Columns[0].Name != "id" || !table.Columns[0].PrimaryKey {
		t.Errorf("first column = %+v, want primary key id", table.Columns[0])
	}
	if len(table.Indexes) != 1 || !table.Indexes[0].Unique {
		t.Errorf("indexes = %+v, want one unique index", table.Indexes)
	}
}

func TestDiffNoSchemaFile(t *testing.T) {
	s, _, _ := testServer(t)
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/diff", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDiffReportsDrift(t *testing.T) {
	s, _, cfg := testServer(t)
	if err := snapBook().WriteYAML(cfg.Schema); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/diff", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp DiffResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.InSync {
		t.Error("in_sync = true, want false")
	}
	if len(resp.Operations) != 1 {
		t.Errorf("operations = %v, want 1 entry", resp.Operations)
	}
	if len(resp.Statements) == 0 {
		t.Error("statements is empty")
	}
}

func TestDiffInSync(t *testing.T) {
	s, db, cfg := testServer(t)
	if err := snapBook().WriteYAML(cfg.Schema); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	mustExec(t, db, `CREATE TABLE book (id INTEGER, title TEXT NOT NULL, PRIMARY KEY (id))`)
	mux := serveMux(s)

	req := httptest.NewRequest("GET", "/api/diff", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp DiffResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.InSync {
		t.Errorf("in_sync = false, operations = %v", resp.Operations)
	}
	if len(resp.Operations) != 0 {
		t.Errorf("operations = %v, want none", resp.Operations)
	}
}

func TestCORSMiddleware(t *testing.T) {
	s, _, _ := testServer(t, WithDevMode(true))
	handler := s.corsMiddleware(serveMux(s))

	req := httptest.NewRequest("OPTIONS", "/api/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q, want %q", got, "*")
	}

	req = httptest.NewRequest("GET", "/api/health", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin on GET = %q", got)
	}
}

func TestStaticHandler(t *testing.T) {
	staticFS := fstest.MapFS{
		"index.html": {Data: []byte("<html>dashboard</html>")},
		"app.js":     {Data: []byte("poll()")},
		"style.css":  {Data: []byte("body{}")},
	}

	s, _, _ := testServer(t, WithStaticFS(staticFS))
	mux := serveMux(s)

	tests := []struct {
		name     string
		path     string
		wantBody string
	}{
		{"root", "/", "<html>dashboard</html>"},
		{"script", "/app.js", "poll()"},
		{"stylesheet", "/style.css", "body{}"},
		{"fallback", "/some/bookmark", "<html>dashboard</html>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got := w.Body.String(); got != tc.wantBody {
				t.Errorf("body = %q, want %q", got, tc.wantBody)
			}
		})
	}
}

func TestJsonResponse(t *testing.T) {
	w := httptest.NewRecorder()
	jsonResponse(w, http.StatusCreated, map[string]string{"key": "value"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["key"] != "value" {
		t.Errorf("key = %q", resp["key"])
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	errorResponse(w, http.StatusBadRequest, "bad input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] != "bad input" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestWithOptions(t *testing.T) {
	_, db, cfg := testServer(t)
	staticFS := fstest.MapFS{"index.html": {Data: []byte("test")}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(db, cfg, logger, 8080,
		WithStaticFS(staticFS),
		WithDevMode(true),
	)

	if s.port != 8080 {
		t.Errorf("port = %d", s.port)
	}
	if !s.devMode {
		t.Error("devMode not set")
	}
	if s.staticFS == nil {
		t.Error("staticFS not set")
	}
}
