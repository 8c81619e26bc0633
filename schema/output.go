package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// snapshotFile is the on-disk form of a snapshot: a version header and
// the tables as a list, sorted by name so output is reproducible.
type snapshotFile struct {
	Version int      `yaml:"version"`
	Tables  []*Table `yaml:"tables"`
}

// LoadYAML reads a snapshot from a YAML file.
func LoadYAML(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing schema file: %w", err)
	}
	s := make(Snapshot, len(f.Tables))
	for _, t := range f.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("parsing schema file: table with no name")
		}
		if _, ok := s[t.Name]; ok {
			return nil, fmt.Errorf("parsing schema file: duplicate table %q", t.Name)
		}
		s[t.Name] = t
	}
	return s, nil
}

// WriteYAML writes the snapshot to a YAML file at the given path.
func (s Snapshot) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := s.ToYAML()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the snapshot as a YAML byte slice.
func (s Snapshot) ToYAML() ([]byte, error) {
	f := snapshotFile{Version: 1, Tables: make([]*Table, 0, len(s))}
	for _, name := range s.TableNames() {
		f.Tables = append(f.Tables, s[name])
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return data, nil
}

// Summary returns a human-readable summary of the snapshot.
func (s Snapshot) Summary() string {
	var totalCols, totalIdx, totalFKs int
	for _, t := range s {
		totalCols += len(t.Columns)
		totalIdx += len(t.Indexes)
		totalFKs += len(t.ForeignKeys)
	}
	return fmt.Sprintf("%d tables, %d columns, %d indexes, %d foreign keys",
		len(s), totalCols, totalIdx, totalFKs)
}
