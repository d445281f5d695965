package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

const optionsQuery = `SELECT id, parent_id FROM options ORDER BY rowid`

// loadSQLite reads the options table in insertion order.
func loadSQLite(ctx context.Context, path string) ([]model.OptionNode, error) {
	// Open read-only; the seed database belongs to someone else.
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, optionsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying options: %w", err)
	}
	defer rows.Close()

	var out []model.OptionNode
	for rows.Next() {
		var id string
		var parent sql.NullString
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("scanning option row: %w", err)
		}
		n := model.OptionNode{ID: id}
		if parent.Valid {
			n.ParentID = parent.String
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading options: %w", err)
	}
	return out, nil
}
