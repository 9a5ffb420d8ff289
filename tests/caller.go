package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/storage/rpc"
)

// tables whose read procedure does not follow the get_all_<table> naming
var readAliases = map[string]string{
	"get_all_trails": "trials",
}

type (
	Call struct {
		Procedure   string
		Params      rpc.Params
		AccessToken string
	}

	// FakeCaller is an in-memory rpc.Caller emulating the get_all_, insert_, update_ and delete_
	// procedures over plain tables of JSON objects.
	FakeCaller struct {
		mu     sync.Mutex
		tables map[string][]map[string]interface{}
		fails  map[string]error
		calls  []Call
		NowFunc func() time.Time
	}
)

var _ rpc.Caller = (*FakeCaller)(nil)

func NewFakeCaller() *FakeCaller {
	return &FakeCaller{
		tables:  make(map[string][]map[string]interface{}),
		fails:   make(map[string]error),
		NowFunc: time.Now,
	}
}

// Seed inserts rows (any JSON-encodable values) in table and returns them as stored.
func (c *FakeCaller) Seed(t *testing.T, table string, rows ...interface{}) []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		var row map[string]interface{}
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Seed() failed: %v", err)
		}
		if err = json.Unmarshal(data, &row); err != nil {
			t.Fatalf("Seed() failed: %v", err)
		}
		if id, _ := row["id"].(string); id == "" {
			row["id"] = uuid.NewString()
		}
		c.tables[table] = append(c.tables[table], row)
		stored = append(stored, row)
	}
	return stored
}

// Fail makes every subsequent call to procedure return err.
func (c *FakeCaller) Fail(procedure string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fails[procedure] = err
}

func (c *FakeCaller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

func (c *FakeCaller) Rows(table string) []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]interface{}(nil), c.tables[table]...)
}

func (c *FakeCaller) Call(ctx context.Context, procedure string, params rpc.Params, dest interface{}) error {
	if err := rpc.ValidateCall(procedure, params); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Procedure: procedure, Params: params, AccessToken: rpc.AccessTokenFrom(ctx)})
	if err := c.fails[procedure]; err != nil {
		return err
	}

	result, err := c.dispatch(procedure, params)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encoding fake result")
	}
	return errors.Wrap(json.Unmarshal(data, dest), "decoding fake result")
}

func (c *FakeCaller) dispatch(procedure string, params rpc.Params) (interface{}, error) {
	if table, ok := readAliases[procedure]; ok {
		return c.all(table), nil
	}
	switch {
	case strings.HasPrefix(procedure, "get_all_"):
		return c.all(strings.TrimPrefix(procedure, "get_all_")), nil
	case strings.HasPrefix(procedure, "insert_"):
		return c.insert(plural(strings.TrimPrefix(procedure, "insert_")), params), nil
	case strings.HasPrefix(procedure, "update_"):
		return c.update(plural(strings.TrimPrefix(procedure, "update_")), params), nil
	case strings.HasPrefix(procedure, "delete_"):
		return c.delete(plural(strings.TrimPrefix(procedure, "delete_")), params), nil
	}
	return nil, &rpc.RemoteError{Status: 404, Code: "PGRST202", Message: "Could not find the function " + procedure}
}

func (c *FakeCaller) all(table string) []map[string]interface{} {
	rows := c.tables[table]
	if rows == nil {
		return []map[string]interface{}{}
	}
	return rows
}

func (c *FakeCaller) insert(table string, params rpc.Params) []map[string]interface{} {
	row := map[string]interface{}{
		"id":         uuid.NewString(),
		"created_at": c.NowFunc().UTC().Format(time.RFC3339),
	}
	for name, val := range params {
		row[strings.TrimPrefix(name, "_")] = val
	}
	c.tables[table] = append(c.tables[table], row)
	return []map[string]interface{}{row}
}

func (c *FakeCaller) update(table string, params rpc.Params) int {
	id, _ := params["_id"].(string)
	for _, row := range c.tables[table] {
		if row["id"] == id {
			for name, val := range params {
				if name != "_id" {
					row[strings.TrimPrefix(name, "_")] = val
				}
			}
			return 1
		}
	}
	return 0
}

func (c *FakeCaller) delete(table string, params rpc.Params) int {
	id, _ := params["_id"].(string)
	rows := c.tables[table]
	for i, row := range rows {
		if row["id"] == id {
			c.tables[table] = append(rows[:i], rows[i+1:]...)
			return 1
		}
	}
	return 0
}

func plural(name string) string {
	if strings.HasSuffix(name, "ch") {
		return name + "es"
	}
	return name + "s"
}
