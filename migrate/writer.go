package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loamdb/loam/schema"
)

// PersistError reports a failed artifact write. The diff that produced
// the artifact is not consumed; callers may fix the path and retry.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting migration %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Writer serializes non-empty diffs into new artifacts on disk.
type Writer struct {
	Dir string
}

// Write persists the diff as a new artifact whose identifier sorts
// after every artifact already in the directory. An empty diff writes
// nothing and returns (nil, nil).
func (w Writer) Write(d schema.Diff, description string) (*Artifact, error) {
	if d.Empty() {
		return nil, nil
	}
	art := &Artifact{
		Identifier:  NewIdentifier(time.Now(), lastIdentifier(w.Dir)),
		Description: description,
		Operations:  d.Operations,
	}
	if err := w.persist(art); err != nil {
		return nil, err
	}
	return art, nil
}

// WriteSkeleton persists an artifact with no operations and a single
// placeholder statement, for migrations authored by hand.
func (w Writer) WriteSkeleton(description string) (*Artifact, error) {
	art := &Artifact{
		Identifier:  NewIdentifier(time.Now(), lastIdentifier(w.Dir)),
		Description: description,
		Operations:  []schema.Operation{},
		Statements:  []string{"-- add SQL here"},
	}
	if err := w.persist(art); err != nil {
		return nil, err
	}
	return art, nil
}

func (w Writer) persist(art *Artifact) error {
	data, err := yaml.Marshal(art)
	if err != nil {
		return &PersistError{Path: w.Dir, Err: err}
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return &PersistError{Path: w.Dir, Err: err}
	}
	path := filepath.Join(w.Dir, art.Filename())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	return nil
}

// NewIdentifier formats t as a 14-digit UTC timestamp. When the clock
// has not advanced past the last known identifier, the result is
// bumped to last+1 so identifiers stay strictly increasing even for
// artifacts generated within the same second.
func NewIdentifier(t time.Time, last string) string {
	id := t.UTC().Format("20060102150405")
	if last != "" && id <= last {
		if n, err := strconv.ParseUint(last, 10, 64); err == nil {
			id = strconv.FormatUint(n+1, 10)
		}
	}
	return id
}

// lastIdentifier scans the directory for the greatest identifier
// prefix. A missing or empty directory yields "".
func lastIdentifier(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	last := ""
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		id := e.Name()
		if i := strings.IndexByte(id, '_'); i >= 0 {
			id = id[:i]
		} else {
			id = strings.TrimSuffix(id, ".yaml")
		}
		if id > last {
			last = id
		}
	}
	return last
}
