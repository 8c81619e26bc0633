package server

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/internal/ddl"
	"github.com/loamdb/loam/migrate"
	"github.com/loamdb/loam/schema"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	records, err := migrate.AppliedRecords(r.Context(), s.db)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := StatusResponse{
		Database: s.cfg.Database,
		Mode:     "auto-apply",
		Applied:  make([]AppliedMigration, 0, len(records)),
		Pending:  []PendingMigration{},
	}
	applied := make(map[string]bool, len(records))
	for _, rec := range records {
		applied[rec.Identifier] = true
		resp.Applied = append(resp.Applied, AppliedMigration{
			Identifier: rec.Identifier,
			Checksum:   rec.Checksum,
			AppliedAt:  formatTime(rec.AppliedAt),
		})
	}

	if s.cfg.Migrations != "" {
		resp.Mode = "migrations"
		artifacts, err := migrate.DirSource{Dir: s.cfg.Migrations}.List()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, a := range artifacts {
			if !applied[a.Identifier] {
				resp.Pending = append(resp.Pending, PendingMigration{
					Identifier:  a.Identifier,
					Description: a.Description,
				})
			}
		}
	}

	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	snap, err := catalog.Read(r.Context(), s.db)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, snapshotResponse(snap))
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	target, err := schema.LoadYAML(s.cfg.Schema)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			errorResponse(w, http.StatusNotFound, "declared schema not found: "+s.cfg.Schema)
			return
		}
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	current, err := catalog.Read(r.Context(), s.db)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	d := schema.Compare(current, target)
	statements, err := ddl.RenderAll(d)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, DiffResponse{
		InSync:     d.Empty(),
		Operations: d.Describe(),
		Statements: statements,
	})
}

func snapshotResponse(snap schema.Snapshot) SchemaResponse {
	resp := SchemaResponse{Tables: make([]TableResponse, 0, len(snap))}
	for _, name := range snap.TableNames() {
		t := snap[name]
		tr := TableResponse{
			Name:    t.Name,
			Columns: make([]ColumnResponse, 0, len(t.Columns)),
		}
		for _, c := range t.Columns {
			cr := ColumnResponse{
				Name:       c.Name,
				Type:       string(c.Type),
				NotNull:    c.NotNull,
				PrimaryKey: c.PrimaryKey,
			}
			if c.Default != nil {
				cr.Default = *c.Default
			}
			tr.Columns = append(tr.Columns, cr)
		}
		for _, ix := range t.Indexes {
			tr.Indexes = append(tr.Indexes, IndexResponse{
				Name:    ix.EffectiveName(t.Name),
				Columns: ix.Columns,
				Unique:  ix.Unique,
			})
		}
		for _, fk := range t.ForeignKeys {
			tr.ForeignKeys = append(tr.ForeignKeys, ForeignKeyResponse{
				Column:    fk.Column,
				RefTable:  fk.RefTable,
				RefColumn: fk.RefColumn,
				OnDelete:  fk.OnDelete,
				OnUpdate:  fk.OnUpdate,
			})
		}
		resp.Tables = append(resp.Tables, tr)
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
