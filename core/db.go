package core

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

const (
	TableSettings      = "school_settings"
	TableClassGroups   = "class_groups"
	TableUsers         = "users"
	TableAnnouncements = "announcements"
	TableExams         = "exams"
	TablePolls         = "polls"
	TableResources     = "resources"
)

var (
	ErrTableNotFound       = errors.New("table not found")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrRowNotFound         = errors.New("row not found")
)

type (
	// Row is a table row keyed by column name.
	Row map[string]interface{}

	// RemoteStore is the table-oriented store that persists the school data.
	// Every call is independent: there are no transactions across tables.
	RemoteStore interface {
		Select(ctx context.Context, table string) ([]Row, error)
		Insert(ctx context.Context, table string, row Row) error
		Update(ctx context.Context, table, id string, row Row) error
		Delete(ctx context.Context, table, id string) error
		Upsert(ctx context.Context, table string, row Row) error
	}
)

// StoreError carries a classified store failure: its Cause is one of the sentinels above.
type StoreError struct {
	Kind  error
	Table string
	Err   error
}

func NewStoreError(kind error, table string, err error) error {
	return &StoreError{Kind: kind, Table: table, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Table, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Table, e.Kind, e.Err)
}

func (e *StoreError) Cause() error  { return e.Kind }
func (e *StoreError) Unwrap() error { return e.Kind }

type Ordering struct {
	Field     string
	Ascending bool
}

func (ord Ordering) String() string {
	if ord.Ascending {
		return ord.Field
	}
	return "-" + ord.Field
}
