// Package sqlxstore is the Postgres core.RemoteStore.
package sqlxstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
)

// Postgres error codes
const (
	codeUndefinedTable      = "42P01"
	codeForeignKeyViolation = "23503"
	codeAdminShutdown       = "57P01"
	codeCrashShutdown       = "57P02"
)

type Store struct {
	db *sqlx.DB
}

var _ core.RemoteStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) Select(ctx context.Context, table string) ([]core.Row, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(table))
	if err != nil {
		return nil, classify(table, err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]core.Row, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err = rows.MapScan(row); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}
		result = append(result, core.Row(row))
	}
	if err = rows.Err(); err != nil {
		return nil, classify(table, err)
	}
	return result, nil
}

func (s *Store) Insert(ctx context.Context, table string, row core.Row) error {
	query, args := buildInsert(table, row)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(table, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table, id string, row core.Row) error {
	query, args := buildUpdate(table, id, row)
	if query == "" {
		return nil
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(table, err)
	}
	return checkAffected(table, id, res)
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)+" WHERE id = $1", id)
	if err != nil {
		return classify(table, err)
	}
	return checkAffected(table, id, res)
}

func (s *Store) Upsert(ctx context.Context, table string, row core.Row) error {
	query, args := buildUpsert(table, row)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(table, err)
	}
	return nil
}

func checkAffected(table, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "%s rows affected", table)
	}
	if n == 0 {
		return core.NewStoreError(core.ErrRowNotFound, table, errors.Errorf("id %q", id))
	}
	return nil
}

// classify maps the Postgres errors the engine handles to the core sentinels, and a database
// shutdown to a core shutdown error.
func classify(table string, err error) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case codeUndefinedTable:
			return core.NewStoreError(core.ErrTableNotFound, table, pqErr)
		case codeForeignKeyViolation:
			return core.NewStoreError(core.ErrForeignKeyViolation, table, pqErr)
		case codeAdminShutdown, codeCrashShutdown:
			return core.NewShutdownError(fmt.Sprintf("%s: database is shutting down: %s", table, pqErr.Message))
		}
	}
	return errors.Wrap(err, table)
}

// sortedColumns returns the columns of `row` in a stable order, `id` excluded.
func sortedColumns(row core.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		if col != "id" {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}

func buildInsert(table string, row core.Row) (string, []interface{}) {
	cols := append([]string{"id"}, sortedColumns(row)...)
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(params, ", "),
	)
	return query, args
}

func buildUpdate(table, id string, row core.Row) (string, []interface{}) {
	cols := sortedColumns(row)
	if len(cols) == 0 {
		return "", nil
	}
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		args = append(args, row[col])
	}
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), len(args),
	)
	return query, args
}

func buildUpsert(table string, row core.Row) (string, []interface{}) {
	query, args := buildInsert(table, row)
	cols := sortedColumns(row)
	if len(cols) == 0 {
		return query + " ON CONFLICT (id) DO NOTHING", args
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		quoted := pq.QuoteIdentifier(col)
		sets[i] = quoted + " = EXCLUDED." + quoted
	}
	return query + " ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", "), args
}
