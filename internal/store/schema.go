package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DefaultSchemaColumns caps the columns listed per table in SchemaBrief.
const DefaultSchemaColumns = 8

// SchemaBrief summarises the public schema for the NL-to-SQL prompt:
//
//	Known tables (schema=public):
//	- clients(id, name, risk_rating)
//
// It returns "" when the schema has no columns.
func (s *Store) SchemaBrief(ctx context.Context, maxColsPerTable int) (string, error) {
	if maxColsPerTable <= 0 {
		maxColsPerTable = DefaultSchemaColumns
	}
	var (
		order  []string
		tables = map[string][]string{}
	)
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var table, column string
			if err := rows.Scan(&table, &column); err != nil {
				return fmt.Errorf("scan column: %w", err)
			}
			cols, seen := tables[table]
			if !seen {
				order = append(order, table)
			}
			if len(cols) < maxColsPerTable {
				tables[table] = append(cols, column)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return "", err
	}
	if len(order) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Known tables (schema=public):")
	for _, t := range order {
		fmt.Fprintf(&b, "\n- %s(%s)", t, strings.Join(tables[t], ", "))
	}
	return b.String(), nil
}
