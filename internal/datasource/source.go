// Package datasource loads the option forest that seeds the grid. Seeds
// come from JSON or YAML files, a read-only SQLite database, or the
// built-in default forest.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SourceType identifies the type of seed source
type SourceType string

const (
	// SourceTypeJSON is a JSON document, either a bare list or {"options": [...]}
	SourceTypeJSON SourceType = "json"
	// SourceTypeYAML is the YAML equivalent of SourceTypeJSON
	SourceTypeYAML SourceType = "yaml"
	// SourceTypeSQLite is a database with an options(id, parent_id) table
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeBuiltin is the default forest compiled into the binary
	SourceTypeBuiltin SourceType = "builtin"
)

// Seed errors. Order and Apply wrap them with the offending ids.
var (
	ErrSeedCycle         = errors.New("seed contains a parent cycle")
	ErrSeedUnknownParent = errors.New("seed references an unknown parent")
	ErrSeedDuplicate     = errors.New("seed defines an id twice")
	ErrUnsupportedSource = errors.New("unsupported seed source")
)

// Source describes where a seed comes from.
type Source struct {
	Type    SourceType `json:"type"`
	Path    string     `json:"path,omitempty"`
	ModTime time.Time  `json:"mod_time"`
	Size    int64      `json:"size,omitempty"`
}

// String returns a human-readable description of the source
func (s Source) String() string {
	if s.Type == SourceTypeBuiltin {
		return "builtin"
	}
	return fmt.Sprintf("%s (%s, %d bytes)", s.Path, s.Type, s.Size)
}

// Builtin returns the source for the default forest.
func Builtin() Source {
	return Source{Type: SourceTypeBuiltin}
}

// DetectSource picks the source type from the file extension and stats the
// file. An empty path yields the builtin source.
func DetectSource(path string) (Source, error) {
	if path == "" {
		return Builtin(), nil
	}

	var typ SourceType
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		typ = SourceTypeJSON
	case ".yaml", ".yml":
		typ = SourceTypeYAML
	case ".db", ".sqlite", ".sqlite3":
		typ = SourceTypeSQLite
	default:
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to stat seed %s: %w", path, err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedSource, path)
	}

	return Source{
		Type:    typ,
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}
