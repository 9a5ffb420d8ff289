package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/storage/rpc"
)

type branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type capture struct {
	path    string
	apikey  string
	auth    string
	payload map[string]interface{}
}

func newTestServer(t *testing.T, status int, body string, got *capture) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		got.path = r.URL.Path
		got.apikey = r.Header.Get("apikey")
		got.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.payload)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCaller_Call(t *testing.T) {
	var got capture
	srv := newTestServer(t, http.StatusOK, `[{"id":"b1","name":"Gombe"},{"id":"b2","name":"Lemba"}]`, &got)
	caller := NewCaller(srv.URL+"/", "anon-key", srv.Client())

	var branches []branch
	err := caller.Call(context.Background(), "get_all_branches", nil, &branches)
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/rpc/get_all_branches", got.path)
	assert.Equal(t, "anon-key", got.apikey)
	assert.Equal(t, "Bearer anon-key", got.auth)
	assert.Empty(t, got.payload)
	assert.Equal(t, []branch{{ID: "b1", Name: "Gombe"}, {ID: "b2", Name: "Lemba"}}, branches)
}

func TestCaller_Call_userToken(t *testing.T) {
	var got capture
	srv := newTestServer(t, http.StatusOK, `1`, &got)
	caller := NewCaller(srv.URL, "anon-key", srv.Client())

	ctx := rpc.WithAccessToken(context.Background(), "user-jwt")
	var count int
	err := caller.Call(ctx, "delete_exam", rpc.Params{"_id": "e1"}, &count)
	require.NoError(t, err)

	assert.Equal(t, "Bearer user-jwt", got.auth)
	assert.Equal(t, map[string]interface{}{"_id": "e1"}, got.payload)
	assert.Equal(t, 1, count)
}

func TestCaller_Call_noContent(t *testing.T) {
	var got capture
	srv := newTestServer(t, http.StatusNoContent, ``, &got)
	caller := NewCaller(srv.URL, "anon-key", srv.Client())

	var count int
	assert.NoError(t, caller.Call(context.Background(), "update_school", rpc.Params{"_id": "s"}, &count))
	assert.Equal(t, 0, count)
}

func TestCaller_Call_errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr *rpc.RemoteError
	}{
		{
			name: "remote error", status: http.StatusBadRequest,
			body:    `{"code":"23503","message":"insert or update violates foreign key","details":"Key (branch_id)","hint":null}`,
			wantErr: &rpc.RemoteError{Status: 400, Code: "23503", Message: "insert or update violates foreign key", Details: "Key (branch_id)"},
		},
		{
			name: "unknown procedure", status: http.StatusNotFound,
			body:    `{"code":"PGRST202","message":"Could not find the function"}`,
			wantErr: &rpc.RemoteError{Status: 404, Code: "PGRST202", Message: "Could not find the function"},
		},
		{
			name: "not json", status: http.StatusBadGateway, body: `<html>bad gateway</html>`,
			wantErr: &rpc.RemoteError{Status: 502, Message: "Bad Gateway"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got capture
			srv := newTestServer(t, tt.status, tt.body, &got)
			caller := NewCaller(srv.URL, "anon-key", srv.Client())

			err := caller.Call(context.Background(), "insert_course", rpc.Params{"_name": "x"}, nil)
			var rErr *rpc.RemoteError
			require.True(t, errors.As(err, &rErr), "error %v is not a RemoteError", err)
			assert.Equal(t, tt.wantErr, rErr)
		})
	}
}

func TestCaller_Call_invalidName(t *testing.T) {
	caller := NewCaller("http://localhost:1", "anon-key", nil)
	assert.Error(t, caller.Call(context.Background(), "drop table;", nil, nil))
}

func TestCaller_Call_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	caller := NewCaller(srv.URL, "anon-key", nil)

	err := caller.Call(context.Background(), "get_all_exams", nil, nil)
	require.Error(t, err)
	var rErr *rpc.RemoteError
	assert.False(t, errors.As(err, &rErr))
}
