// Package migrate persists schema diffs as ordered migration artifacts
// and applies them to a database, tracking what ran in a bookkeeping
// table inside that same database.
package migrate

import (
	"fmt"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/loamdb/loam/schema"
)

// Artifact is one persisted migration: an identifier that sorts in
// application order, the operations it encodes, optional raw SQL
// statements for hand-written migrations, and a description. Artifacts
// are immutable once written; the runner pins them by checksum.
type Artifact struct {
	Identifier  string             `yaml:"identifier"`
	Description string             `yaml:"description"`
	Operations  []schema.Operation `yaml:"operations"`
	Statements  []string           `yaml:"statements,omitempty"`
}

// Diff returns the artifact's operations as a schema diff.
func (a *Artifact) Diff() schema.Diff {
	return schema.Diff{Operations: a.Operations}
}

// Checksum hashes the artifact's operations and statements. The
// identifier and description are left out: renaming or re-describing a
// migration is harmless, changing what it does is not.
func (a *Artifact) Checksum() string {
	body := struct {
		Operations []schema.Operation `yaml:"operations"`
		Statements []string           `yaml:"statements"`
	}{a.Operations, a.Statements}
	data, err := yaml.Marshal(body)
	if err != nil {
		// Marshaling plain structs cannot fail; keep the signature clean.
		panic(fmt.Sprintf("marshaling artifact body: %v", err))
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// Filename returns the artifact's canonical file name,
// <identifier>_<slug>.yaml, so lexical directory order equals
// application order.
func (a *Artifact) Filename() string {
	return a.Identifier + "_" + slugify(a.Description) + ".yaml"
}

// Load reads one artifact from a YAML file.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading migration file: %w", err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing migration file %s: %w", path, err)
	}
	if a.Identifier == "" {
		return nil, fmt.Errorf("parsing migration file %s: missing identifier", path)
	}
	return &a, nil
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "migration"
	}
	return out
}
