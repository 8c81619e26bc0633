package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		engine string
		want   Type
	}{
		{"INTEGER", TypeInteger},
		{"int", TypeInteger},
		{"BIGINT", TypeInteger},
		{"TEXT", TypeText},
		{"VARCHAR(255)", TypeText},
		{"character varying", TypeText},
		{"CLOB", TypeText},
		{"REAL", TypeReal},
		{"DOUBLE PRECISION", TypeReal},
		{"FLOAT", TypeReal},
		{"NUMERIC(10,2)", TypeReal},
		{"DECIMAL", TypeReal},
		{"BLOB", TypeBlob},
		{"", TypeBlob},
		{"BOOLEAN", TypeBoolean},
		{"bool", TypeBoolean},
		{"TIMESTAMP", TypeDateTime},
		{"DATETIME", TypeDateTime},
		{"DATE", TypeDateTime},
		{"geometry", TypeText},
	}
	for _, c := range cases {
		if got := NormalizeType(c.engine); got != c.want {
			t.Errorf("NormalizeType(%q) = %q, want %q", c.engine, got, c.want)
		}
	}
}

func TestTypeSQLTypeRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeText, TypeInteger, TypeReal, TypeBlob, TypeBoolean, TypeDateTime} {
		if got := NormalizeType(typ.SQLType()); got != typ {
			t.Errorf("NormalizeType(%q.SQLType()) = %q, want %q", typ, got, typ)
		}
	}
}

func TestColumnEqual(t *testing.T) {
	base := Column{Name: "title", Type: TypeText, NotNull: true}

	if !base.Equal(Column{Name: "title", Type: TypeText, NotNull: true}) {
		t.Error("identical columns should be equal")
	}
	if base.Equal(Column{Name: "title", Type: TypeInteger, NotNull: true}) {
		t.Error("type change should not be equal")
	}
	if base.Equal(Column{Name: "title", Type: TypeText}) {
		t.Error("nullability change should not be equal")
	}
	if base.Equal(Column{Name: "title", Type: TypeText, NotNull: true, Default: strPtr("''")}) {
		t.Error("added default should not be equal")
	}

	a := Column{Name: "at", Type: TypeDateTime, Default: strPtr("CURRENT_TIMESTAMP")}
	b := Column{Name: "at", Type: TypeDateTime, Default: strPtr("current_timestamp")}
	if !a.Equal(b) {
		t.Error("default comparison should ignore case")
	}

	// Primary key membership is a table-level concern.
	pk := Column{Name: "title", Type: TypeText, NotNull: true, PrimaryKey: true}
	if !base.Equal(pk) {
		t.Error("primary key flag alone should not make columns unequal")
	}
}

func TestIndexMatches(t *testing.T) {
	ix := Index{Name: "idx_book_title", Columns: []string{"title"}}

	if !ix.Matches(Index{Name: "sqlite_autoindex_book_1", Columns: []string{"title"}}) {
		t.Error("names should be ignored")
	}
	if ix.Matches(Index{Columns: []string{"title"}, Unique: true}) {
		t.Error("uniqueness change should not match")
	}
	if ix.Matches(Index{Columns: []string{"year"}}) {
		t.Error("different columns should not match")
	}
	if (Index{Columns: []string{"a", "b"}}).Matches(Index{Columns: []string{"b", "a"}}) {
		t.Error("column order is significant")
	}
}

func TestIndexEffectiveName(t *testing.T) {
	named := Index{Name: "my_idx", Columns: []string{"a"}}
	if got := named.EffectiveName("book"); got != "my_idx" {
		t.Errorf("EffectiveName = %q, want %q", got, "my_idx")
	}
	plain := Index{Columns: []string{"author", "year"}}
	if got := plain.EffectiveName("book"); got != "idx_book_author_year" {
		t.Errorf("EffectiveName = %q, want %q", got, "idx_book_author_year")
	}
	uniq := Index{Columns: []string{"isbn"}, Unique: true}
	if got := uniq.EffectiveName("book"); got != "uniq_book_isbn" {
		t.Errorf("EffectiveName = %q, want %q", got, "uniq_book_isbn")
	}
}

func TestWriteAndLoadYAML(t *testing.T) {
	s := Snapshot{
		"book": &Table{
			Name: "book",
			Columns: []Column{
				{Name: "id", Type: TypeInteger, PrimaryKey: true},
				{Name: "title", Type: TypeText, NotNull: true, Default: strPtr("''")},
				{Name: "author_id", Type: TypeInteger},
			},
			PrimaryKey: []string{"id"},
			Indexes:    []Index{{Name: "idx_book_title", Columns: []string{"title"}}},
			ForeignKeys: []ForeignKey{
				{Column: "author_id", RefTable: "author", RefColumn: "id", OnDelete: "CASCADE"},
			},
		},
		"author": &Table{
			Name: "author",
			Columns: []Column{
				{Name: "id", Type: TypeInteger, PrimaryKey: true},
				{Name: "name", Type: TypeText, NotNull: true},
			},
			PrimaryKey: []string{"id"},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")

	if err := s.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("schema file not created: %v", err)
	}

	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(loaded))
	}
	if !loaded.Equal(s) {
		t.Errorf("loaded snapshot differs from written one:\n%v", loaded)
	}
	book := loaded["book"]
	if book == nil {
		t.Fatal("book table missing after load")
	}
	if book.Columns[1].Default == nil || *book.Columns[1].Default != "''" {
		t.Errorf("title default = %v, want ''", book.Columns[1].Default)
	}
	if len(book.ForeignKeys) != 1 || book.ForeignKeys[0].RefTable != "author" {
		t.Errorf("book foreign keys = %+v, want one referencing author", book.ForeignKeys)
	}
}

func TestLoadYAML_NotFound(t *testing.T) {
	_, err := LoadYAML("/nonexistent/path/schema.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAML_DuplicateTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	doc := `version: 1
tables:
  - name: book
    columns:
      - {name: id, type: integer}
  - name: book
    columns:
      - {name: id, type: integer}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadYAML(path); err == nil {
		t.Error("expected error for duplicate table name")
	}
}

func TestSnapshotEqualIgnoresOrder(t *testing.T) {
	a := Snapshot{
		"book": &Table{
			Name: "book",
			Columns: []Column{
				{Name: "id", Type: TypeInteger},
				{Name: "title", Type: TypeText},
			},
			Indexes: []Index{
				{Name: "i1", Columns: []string{"id"}},
				{Name: "i2", Columns: []string{"title"}, Unique: true},
			},
		},
	}
	b := Snapshot{
		"book": &Table{
			Name: "book",
			Columns: []Column{
				{Name: "title", Type: TypeText},
				{Name: "id", Type: TypeInteger},
			},
			Indexes: []Index{
				{Name: "other_name", Columns: []string{"title"}, Unique: true},
				{Name: "i1", Columns: []string{"id"}},
			},
		},
	}
	if !a.Equal(b) {
		t.Error("snapshots differing only in production order should be equal")
	}
}

func TestSnapshotClone(t *testing.T) {
	s := Snapshot{
		"book": &Table{
			Name:    "book",
			Columns: []Column{{Name: "id", Type: TypeInteger, Default: strPtr("0")}},
		},
	}
	c := s.Clone()
	*c["book"].Columns[0].Default = "1"
	c["book"].Columns = append(c["book"].Columns, Column{Name: "x", Type: TypeText})

	if *s["book"].Columns[0].Default != "0" {
		t.Error("clone shares default pointer with original")
	}
	if len(s["book"].Columns) != 1 {
		t.Error("clone shares column slice with original")
	}
}

func TestSummary(t *testing.T) {
	s := Snapshot{
		"a": &Table{Name: "a", Columns: []Column{{Name: "id", Type: TypeInteger}}},
		"b": &Table{
			Name:    "b",
			Columns: []Column{{Name: "id", Type: TypeInteger}, {Name: "v", Type: TypeText}},
			Indexes: []Index{{Columns: []string{"v"}}},
		},
	}
	want := "2 tables, 3 columns, 1 indexes, 0 foreign keys"
	if got := s.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}
