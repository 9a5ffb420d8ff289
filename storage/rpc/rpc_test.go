package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCall(t *testing.T) {
	tests := []struct {
		name      string
		procedure string
		params    Params
		wantErr   bool
	}{
		{name: "no params", procedure: "get_all_branches"},
		{name: "params", procedure: "update_course", params: Params{"_id": "x", "_name": "y"}},
		{name: "legacy spelling", procedure: "get_all_trails"},
		{name: "empty", procedure: "", wantErr: true},
		{name: "upper case", procedure: "Get_All", wantErr: true},
		{name: "injection", procedure: "get_all(); drop table x; --", wantErr: true},
		{name: "bad param", procedure: "delete_exam", params: Params{"_id = 1 or": 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCall(tt.procedure, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRemoteError_Error(t *testing.T) {
	assert.Equal(t, "boom (P0001)", (&RemoteError{Code: "P0001", Message: "boom"}).Error())
	assert.Equal(t, "boom", (&RemoteError{Message: "boom"}).Error())
}

func TestAccessToken(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", AccessTokenFrom(ctx))
	assert.Equal(t, "tok", AccessTokenFrom(WithAccessToken(ctx, "tok")))
}
