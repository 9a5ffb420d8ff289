package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/session"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", TestMode: true})

	usr := session.User{ID: "u1", Email: "admin@shule.cd"}
	err := errors.New("calling get_all_branches: connection refused")
	logger.Error("listing branches", err, usr, map[string]interface{}{"path": "/dashboard/branches"})

	out := buf.String()
	assert.Contains(t, out, "[ERROR] listing branches")
	assert.Contains(t, out, "calling get_all_branches: connection refused")
	assert.Contains(t, out, "user: u1 <admin@shule.cd>")
	assert.Contains(t, out, "/dashboard/branches")

	args := logger.prepare("listing branches", []interface{}{err, session.Session{User: usr}, usr})
	assert.Equal(t, []interface{}{"listing branches", err}, args)
}
