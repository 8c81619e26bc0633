package server

// StatusResponse is the API response for migration status.
type StatusResponse struct {
	Database string             `json:"database"`
	Mode     string             `json:"mode"`
	Applied  []AppliedMigration `json:"applied"`
	Pending  []PendingMigration `json:"pending"`
}

// AppliedMigration is one row of migration history.
type AppliedMigration struct {
	Identifier string `json:"identifier"`
	Checksum   string `json:"checksum"`
	AppliedAt  string `json:"applied_at,omitempty"`
}

// PendingMigration is an artifact on disk not yet applied.
type PendingMigration struct {
	Identifier  string `json:"identifier"`
	Description string `json:"description"`
}

// SchemaResponse is the API response for the live database schema.
type SchemaResponse struct {
	Tables []TableResponse `json:"tables"`
}

// TableResponse describes one table.
type TableResponse struct {
	Name        string               `json:"name"`
	Columns     []ColumnResponse     `json:"columns"`
	Indexes     []IndexResponse      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKeyResponse `json:"foreign_keys,omitempty"`
}

// ColumnResponse describes one column.
type ColumnResponse struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

// IndexResponse describes one index.
type IndexResponse struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ForeignKeyResponse describes one foreign key.
type ForeignKeyResponse struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
	OnDelete  string `json:"on_delete,omitempty"`
	OnUpdate  string `json:"on_update,omitempty"`
}

// DiffResponse is the API response for drift between the declared
// schema and the live database.
type DiffResponse struct {
	InSync     bool     `json:"in_sync"`
	Operations []string `json:"operations"`
	Statements []string `json:"statements"`
}
