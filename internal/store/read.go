package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/assetq/internal/schema"
)

// Tables returns every user table with its columns in declaration order.
// Tables are ordered by name; views and sqlite internals are excluded.
//
// Returns an empty slice (not nil) for an empty database.
func (s *Store) Tables(ctx context.Context) ([]schema.Table, error) {
	names, err := s.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]schema.Table, 0, len(names))
	for _, name := range names {
		cols, err := s.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, schema.Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

// tableColumns reads PRAGMA table_info. The pragma is issued directly on the
// pool, bypassing Guard; name comes from sqlite_master, never from callers.
func (s *Store) tableColumns(ctx context.Context, name string) ([]schema.Column, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+schema.QuoteIdent(name)+")")
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", name, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", name, err)
		}
		cols = append(cols, schema.Column{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", name, err)
	}
	return cols, nil
}
