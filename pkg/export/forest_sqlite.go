package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
	"github.com/vanderheijden86/cascadegrid/pkg/version"
)

// ForestSchemaVersion is written to export_meta so readers can detect
// layout changes.
const ForestSchemaVersion = 1

// SaveForestSQLite writes tree to a fresh SQLite database at path. The
// options table uses the same (id, parent_id) layout the seed loader
// reads, so an export can be used as a seed.
func SaveForestSQLite(path string, tree *options.Tree) error {
	if tree == nil || tree.Len() == 0 {
		return fmt.Errorf("no options to export")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	if err := createForestSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := insertOptions(db, tree); err != nil {
		return fmt.Errorf("insert options: %w", err)
	}
	meta := map[string]string{
		"schema_version": fmt.Sprint(ForestSchemaVersion),
		"exported_at":    time.Now().UTC().Format(time.RFC3339),
		"version":        version.Version,
		"option_count":   fmt.Sprint(tree.Len()),
	}
	for k, v := range meta {
		if _, err := db.Exec(`INSERT OR REPLACE INTO export_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}
	}

	// VACUUM must be last and outside a transaction.
	if _, err := db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true

	debug.Log("export: wrote %d options to %s", tree.Len(), path)
	return nil
}

func createForestSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS options (
			id TEXT PRIMARY KEY,
			parent_id TEXT REFERENCES options(id),
			depth INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_options_parent ON options(parent_id)`,
		`CREATE TABLE IF NOT EXISTS export_meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// insertOptions writes nodes in insertion order, which is parents-first.
func insertOptions(db *sql.DB, tree *options.Tree) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO options (id, parent_id, depth) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range tree.Nodes() {
		var parent sql.NullString
		if n.ParentID != "" {
			parent = sql.NullString{String: n.ParentID, Valid: true}
		}
		if _, err := stmt.Exec(n.ID, parent, tree.Depth(n.ID)); err != nil {
			return fmt.Errorf("option %s: %w", n.ID, err)
		}
	}
	return tx.Commit()
}
