package postgres

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/storage/rpc"
)

func TestQuery(t *testing.T) {
	tests := []struct {
		name      string
		procedure string
		params    rpc.Params
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name: "no params", procedure: "get_all_branches",
			wantQuery: "SELECT * FROM get_all_branches()", wantArgs: []interface{}{},
		},
		{
			name: "sorted named args", procedure: "update_course",
			params:    rpc.Params{"_name": "Maths", "_id": "c1", "_classroom": nil},
			wantQuery: "SELECT * FROM update_course(_classroom => $1, _id => $2, _name => $3)",
			wantArgs:  []interface{}{nil, "c1", "Maths"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := Query(tt.procedure, tt.params)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestToRemoteError(t *testing.T) {
	err := toRemoteError(&pq.Error{Code: "23505", Message: "duplicate key", Detail: "Key (name)", Hint: "rename"})
	var rErr *rpc.RemoteError
	assert.True(t, errors.As(err, &rErr))
	assert.Equal(t, &rpc.RemoteError{Code: "23505", Message: "duplicate key", Details: "Key (name)", Hint: "rename"}, rErr)

	other := errors.New("conn reset")
	assert.Equal(t, other, toRemoteError(other))
}

func TestIsSlice(t *testing.T) {
	var rows []struct{}
	var count int
	assert.True(t, isSlice(&rows))
	assert.False(t, isSlice(&count))
}
