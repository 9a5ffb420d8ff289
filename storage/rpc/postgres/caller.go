// Package postgres calls stored procedures over a direct database connection.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/storage/rpc"
)

type Caller struct {
	db *sqlx.DB
}

var _ rpc.Caller = (*Caller)(nil)

// NewCaller wraps db. Result columns are matched against the `json` tags of the destination.
func NewCaller(db *sql.DB) *Caller {
	dbx := sqlx.NewDb(db, "postgres")
	dbx.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)
	return &Caller{db: dbx}
}

// Query builds the statement calling procedure with named arguments, in a stable order.
func Query(procedure string, params rpc.Params) (string, []interface{}) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]interface{}, 0, len(names))
	parts := make([]string, 0, len(names))
	for i, name := range names {
		parts = append(parts, fmt.Sprintf("%s => $%d", name, i+1))
		args = append(args, params[name])
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", procedure, strings.Join(parts, ", ")), args
}

func (c *Caller) Call(ctx context.Context, procedure string, params rpc.Params, dest interface{}) error {
	if err := rpc.ValidateCall(procedure, params); err != nil {
		return err
	}
	query, args := Query(procedure, params)

	var err error
	switch {
	case dest == nil:
		_, err = c.db.ExecContext(ctx, query, args...)
	case isSlice(dest):
		err = sqlx.SelectContext(ctx, c.db, dest, query, args...)
	default:
		err = sqlx.GetContext(ctx, c.db, dest, query, args...)
		if err == sql.ErrNoRows {
			return rpc.ErrNoResult
		}
	}
	if err != nil {
		return errors.Wrapf(toRemoteError(err), "calling %s", procedure)
	}
	return nil
}

func isSlice(dest interface{}) bool {
	t := reflect.TypeOf(dest)
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Slice
}

func toRemoteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &rpc.RemoteError{
			Code:    string(pqErr.Code),
			Message: pqErr.Message,
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
		}
	}
	return err
}
