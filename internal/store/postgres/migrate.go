package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/ingest/internal/core"
)

// EnsureTables creates any registered table missing from the schema, using
// its declared columns. Existing tables are left untouched.
func (s *Store) EnsureTables(ctx context.Context, defs []core.TableDefinition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &core.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, def := range defs {
		if len(def.Columns) == 0 {
			continue
		}
		for _, stmt := range createTableSQL(s.tableIdent(def.Info.Key), def.Columns) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return classify("create "+def.Info.Key, err)
			}
		}
		slog.Debug("table ensured", "table", def.Info.Key, "columns", len(def.Columns))
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS plus column comments.
// A bigint primary key becomes an identity column.
func createTableSQL(table pgx.Identifier, cols []core.ColumnDescriptor) []string {
	defs := make([]string, len(cols))
	var comments []string

	for i, c := range cols {
		col := pgx.Identifier{c.Name}.Sanitize()
		def := col + " " + c.DataType
		switch {
		case c.PrimaryKey && strings.EqualFold(c.DataType, "bigint"):
			def += " GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
		case c.PrimaryKey:
			def += " PRIMARY KEY"
		case !c.Nullable:
			def += " NOT NULL"
		}
		defs[i] = def

		if c.Comment != "" {
			comments = append(comments, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'",
				table.Sanitize(), col, strings.ReplaceAll(c.Comment, "'", "''")))
		}
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		table.Sanitize(), strings.Join(defs, ",\n\t"))}
	return append(stmts, comments...)
}
