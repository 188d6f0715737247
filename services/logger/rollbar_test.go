package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST"})
	l.Enable(false)
	return l
}

func TestRollbarLogger_Prepare(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	err := errors.New("boom")
	usr := user.User{ID: "u1", Name: "Asha", Email: "asha@school.test"}
	extras := map[string]interface{}{"table": "polls"}

	args := l.prepare("failed", []interface{}{err, usr, extras, usr})

	assert.Equal(t, []interface{}{"failed", err, extras}, args)
}

func TestRollbarLogger_PrintsToStd(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf)

	l.Warn("store unreachable", errors.New("dial tcp: refused"))

	assert.Equal(t, "store unreachable\ndial tcp: refused\n", buf.String())
}
