// Package inmemdb is an in-memory core.RemoteStore, used in development and tests.
package inmemdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
)

// Ops
const (
	OpSelect = "select"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpUpsert = "upsert"
)

var AllTables = []string{
	core.TableSettings,
	core.TableClassGroups,
	core.TableUsers,
	core.TableAnnouncements,
	core.TableExams,
	core.TablePolls,
	core.TableResources,
}

type (
	table struct {
		rows []core.Row // insertion order
	}

	failure struct {
		table string
		op    string
		err   error
	}

	DB struct {
		mutex    sync.RWMutex
		tables   map[string]*table
		failures []failure
		calls    map[string]int
	}
)

var _ core.RemoteStore = (*DB)(nil)

// NewDB creates a DB with the given tables, or with all the tables when none is given.
func NewDB(tables ...string) *DB {
	if len(tables) == 0 {
		tables = AllTables
	}
	db := &DB{
		tables: make(map[string]*table, len(tables)),
		calls:  make(map[string]int),
	}
	for _, name := range tables {
		db.tables[name] = &table{}
	}
	return db
}

// DropTable removes a table: subsequent calls on it fail with core.ErrTableNotFound.
func (db *DB) DropTable(name string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	delete(db.tables, name)
}

// Seed appends rows to a table without going through the store API (no call is counted).
func (db *DB) Seed(name string, rows ...core.Row) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	tbl, ok := db.tables[name]
	if !ok {
		tbl = &table{}
		db.tables[name] = tbl
	}
	for _, row := range rows {
		tbl.rows = append(tbl.rows, copyRow(row))
	}
}

// Rows returns a copy of the rows of a table.
func (db *DB) Rows(name string) []core.Row {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	tbl, ok := db.tables[name]
	if !ok {
		return nil
	}
	return copyRows(tbl.rows)
}

// FailNext makes the next `op` call on `table` fail with `err`. Failures queue up in call order.
func (db *DB) FailNext(table, op string, err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.failures = append(db.failures, failure{table: table, op: op, err: err})
}

// Calls returns the number of `op` calls made on `table`, failed ones included.
func (db *DB) Calls(table, op string) int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.calls[callKey(table, op)]
}

// ResetCalls clears the call counters.
func (db *DB) ResetCalls() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.calls = make(map[string]int)
}

// begin counts the call and returns the table, or the error the call must fail with.
// It must be called with the write lock held.
func (db *DB) begin(name, op string) (*table, error) {
	db.calls[callKey(name, op)]++
	for i, f := range db.failures {
		if f.table == name && f.op == op {
			db.failures = append(db.failures[:i], db.failures[i+1:]...)
			return nil, f.err
		}
	}
	tbl, ok := db.tables[name]
	if !ok {
		return nil, core.NewStoreError(core.ErrTableNotFound, name, errors.Errorf("relation %q does not exist", name))
	}
	return tbl, nil
}

func (db *DB) Select(ctx context.Context, name string) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl, err := db.begin(name, OpSelect)
	if err != nil {
		return nil, err
	}
	return copyRows(tbl.rows), nil
}

func (db *DB) Insert(ctx context.Context, name string, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl, err := db.begin(name, OpInsert)
	if err != nil {
		return err
	}
	id := rowID(row)
	if id == "" {
		return errors.Errorf("inmemdb: %s: insert without id", name)
	}
	if tbl.indexOf(id) >= 0 {
		return errors.Errorf("inmemdb: %s: duplicate key %q", name, id)
	}
	tbl.rows = append(tbl.rows, copyRow(row))
	return nil
}

func (db *DB) Update(ctx context.Context, name, id string, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl, err := db.begin(name, OpUpdate)
	if err != nil {
		return err
	}
	idx := tbl.indexOf(id)
	if idx < 0 {
		return core.NewStoreError(core.ErrRowNotFound, name, errors.Errorf("id %q", id))
	}
	for col, val := range row {
		if col == "id" {
			continue
		}
		tbl.rows[idx][col] = val
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl, err := db.begin(name, OpDelete)
	if err != nil {
		return err
	}
	idx := tbl.indexOf(id)
	if idx < 0 {
		return core.NewStoreError(core.ErrRowNotFound, name, errors.Errorf("id %q", id))
	}
	tbl.rows = append(tbl.rows[:idx], tbl.rows[idx+1:]...)
	return nil
}

func (db *DB) Upsert(ctx context.Context, name string, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl, err := db.begin(name, OpUpsert)
	if err != nil {
		return err
	}
	id := rowID(row)
	if id == "" {
		return errors.Errorf("inmemdb: %s: upsert without id", name)
	}
	if idx := tbl.indexOf(id); idx >= 0 {
		tbl.rows[idx] = copyRow(row)
	} else {
		tbl.rows = append(tbl.rows, copyRow(row))
	}
	return nil
}

func (tbl *table) indexOf(id string) int {
	for i, row := range tbl.rows {
		if rowID(row) == id {
			return i
		}
	}
	return -1
}

func rowID(row core.Row) string {
	if id, ok := row["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	return ""
}

func callKey(table, op string) string {
	return table + "." + op
}

func copyRow(row core.Row) core.Row {
	cp := make(core.Row, len(row))
	for col, val := range row {
		cp[col] = val
	}
	return cp
}

func copyRows(rows []core.Row) []core.Row {
	cp := make([]core.Row, 0, len(rows))
	for _, row := range rows {
		cp = append(cp, copyRow(row))
	}
	return cp
}
