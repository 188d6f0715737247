package sqlxstore

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/taarifa/core"
)

func TestBuildInsert(t *testing.T) {
	query, args := buildInsert(core.TableClassGroups, core.Row{"name": "10A", "id": "c1"})
	assert.Equal(t, `INSERT INTO "class_groups" ("id", "name") VALUES ($1, $2)`, query)
	assert.Equal(t, []interface{}{"c1", "10A"}, args)
}

func TestBuildUpdate(t *testing.T) {
	query, args := buildUpdate(core.TableUsers, "u1", core.Row{"role": "admin", "name": "Asha", "id": "ignored"})
	assert.Equal(t, `UPDATE "users" SET "name" = $1, "role" = $2 WHERE id = $3`, query)
	assert.Equal(t, []interface{}{"Asha", "admin", "u1"}, args)

	query, _ = buildUpdate(core.TableUsers, "u1", core.Row{})
	assert.Empty(t, query)
}

func TestBuildUpsert(t *testing.T) {
	query, args := buildUpsert(core.TableSettings, core.Row{"id": "default", "name": "Shule", "theme_color": "#000000"})
	assert.Equal(t,
		`INSERT INTO "school_settings" ("id", "name", "theme_color") VALUES ($1, $2, $3)`+
			` ON CONFLICT (id) DO UPDATE SET "name" = EXCLUDED."name", "theme_color" = EXCLUDED."theme_color"`,
		query,
	)
	assert.Equal(t, []interface{}{"default", "Shule", "#000000"}, args)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "missing table", err: &pq.Error{Code: codeUndefinedTable}, want: core.ErrTableNotFound},
		{name: "foreign key", err: &pq.Error{Code: codeForeignKeyViolation}, want: core.ErrForeignKeyViolation},
		{name: "wrapped foreign key", err: errors.Wrap(&pq.Error{Code: codeForeignKeyViolation}, "exec"), want: core.ErrForeignKeyViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Cause(classify("users", tt.err)))
		})
	}

	assert.True(t, core.IsShutdown(classify("users", &pq.Error{Code: codeAdminShutdown, Message: "terminating connection"})))
	assert.True(t, core.IsShutdown(classify("users", errors.Wrap(&pq.Error{Code: codeCrashShutdown}, "query"))))

	other := &pq.Error{Code: "23505"}
	assert.Equal(t, other, errors.Cause(classify("users", other)))
}
