// Package postgres is the PostgreSQL storage collaborator: schema
// introspection, transactional bulk inserts and scoped paging.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/query"
)

// DefaultBatchSize is the number of row inserts queued per round trip when
// locating a failing row.
const DefaultBatchSize = 500

// Store implements core.Store on a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	schema    string
	batchSize int
}

// New creates a store. schema defaults to "public".
func New(pool *pgxpool.Pool, schema string, batchSize int) *Store {
	if schema == "" {
		schema = "public"
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{pool: pool, schema: schema, batchSize: batchSize}
}

// Connect opens and verifies a pool from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) tableIdent(table string) pgx.Identifier {
	return pgx.Identifier{s.schema, table}
}

const describeColumnsSQL = `
SELECT c.column_name,
       c.data_type,
       c.is_nullable = 'YES' AS nullable,
       COALESCE(pk.is_pk, false) AS primary_key,
       COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '') AS comment
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name, true AS is_pk
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name
     AND tc.table_schema = kcu.table_schema
     AND tc.table_name = kcu.table_name
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = $1
      AND tc.table_name = $2
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = $1
  AND c.table_name = $2
ORDER BY c.ordinal_position`

// DescribeColumns lists the columns of table in ordinal order.
func (s *Store) DescribeColumns(ctx context.Context, table string) ([]core.ColumnDescriptor, error) {
	rows, err := s.pool.Query(ctx, describeColumnsSQL, s.schema, table)
	if err != nil {
		return nil, &core.StorageError{Op: "describe " + table, Err: err}
	}

	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ColumnDescriptor, error) {
		var c core.ColumnDescriptor
		if err := row.Scan(&c.Name, &c.DataType, &c.Nullable, &c.PrimaryKey, &c.Comment); err != nil {
			return c, err
		}
		c.Type = core.ParseColumnType(c.DataType)
		return c, nil
	})
	if err != nil {
		return nil, &core.StorageError{Op: "describe " + table, Err: err}
	}
	return cols, nil
}

// BulkInsert writes rows in one transaction. COPY is tried first; if it
// fails on data, the rows are replayed as individual inserts to find the
// first rejected row, and nothing is committed.
func (s *Store) BulkInsert(ctx context.Context, table string, fields []string, rows [][]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &core.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SAVEPOINT bulk_copy"); err != nil {
		return classify("savepoint", err)
	}

	_, copyErr := tx.CopyFrom(ctx, s.tableIdent(table), fields, pgx.CopyFromRows(rows))
	if copyErr != nil {
		if isTransient(copyErr) {
			return &core.StorageError{Op: "copy into " + table, Err: copyErr}
		}
		slog.Debug("copy rejected, locating failing row", "table", table, "error", copyErr)

		if _, err := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT bulk_copy"); err != nil {
			return classify("rollback to savepoint", err)
		}
		if err := s.insertRows(ctx, tx, table, fields, rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

// insertRows replays rows as single-row inserts, queued batchSize at a time.
func (s *Store) insertRows(ctx context.Context, tx pgx.Tx, table string, fields []string, rows [][]any) error {
	stmt := insertSQL(s.tableIdent(table), fields)

	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(stmt, row...)
		}

		br := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				if isTransient(err) {
					return &core.StorageError{Op: "insert into " + table, Err: err}
				}
				return &core.RowError{Index: i, Err: err}
			}
		}
		if err := br.Close(); err != nil {
			return classify("insert into "+table, err)
		}
	}
	return nil
}

func insertSQL(table pgx.Identifier, fields []string) string {
	cols := make([]string, len(fields))
	params := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = pgx.Identifier{f}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Sanitize(), strings.Join(cols, ", "), strings.Join(params, ", "))
}

// Page returns one page of rows matching where, newest first.
func (s *Store) Page(ctx context.Context, table string, where query.Predicate, req query.PageRequest) (query.Page, error) {
	req = req.Normalize()
	clause, args, next := where.SQL(1)
	ident := s.tableIdent(table).Sanitize()

	var total int64
	countSQL := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", ident, clause)
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return query.Page{}, classify("count "+table, err)
	}

	listSQL := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY 1 DESC LIMIT $%d OFFSET $%d",
		ident, clause, next, next+1)
	rows, err := s.pool.Query(ctx, listSQL, append(args, req.PageSize, req.Offset())...)
	if err != nil {
		return query.Page{}, classify("list "+table, err)
	}
	data, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return query.Page{}, classify("list "+table, err)
	}

	return query.Page{Rows: data, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}

// classify wraps transient failures as core.StorageError and leaves query
// errors untouched.
func classify(op string, err error) error {
	if isTransient(err) {
		return &core.StorageError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransient reports errors caused by connectivity or server state rather
// than by the data: network failures, and server errors in the connection,
// resource, operator and rollback classes.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		case "08", // connection exception
			"53", // insufficient resources
			"57", // operator intervention
			"40": // transaction rollback
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
