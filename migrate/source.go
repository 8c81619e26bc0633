package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source lists migration artifacts in application order.
type Source interface {
	List() ([]*Artifact, error)
}

// DirSource reads artifacts from a directory of YAML files. Files are
// ordered by name, so the identifier prefix decides application order.
type DirSource struct {
	Dir string
}

var _ Source = DirSource{}

// List loads every .yaml artifact in the directory, sorted by file
// name. A configured directory that does not exist is an error rather
// than an empty history.
func (s DirSource) List() ([]*Artifact, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	artifacts := make([]*Artifact, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		a, err := Load(filepath.Join(s.Dir, name))
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[a.Identifier]; ok {
			return nil, fmt.Errorf("duplicate migration identifier %s in %s and %s", a.Identifier, prev, name)
		}
		seen[a.Identifier] = name
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
