// Package postgrest calls stored procedures through the hosted REST gateway (PostgREST).
package postgrest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/shule/storage/rpc"
)

const rpcPath = "/rest/v1/rpc/"

type Caller struct {
	baseURL   string
	publicKey string
	client    *rest.Client
}

var _ rpc.Caller = (*Caller)(nil)

// NewCaller returns a Caller targeting baseURL, authenticating with the project's public key.
// A nil httpClient uses http.DefaultClient.
func NewCaller(baseURL, publicKey string, httpClient *http.Client) *Caller {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Caller{
		baseURL:   strings.TrimRight(baseURL, "/"),
		publicKey: publicKey,
		client:    &rest.Client{HTTPClient: httpClient},
	}
}

func (c *Caller) Call(ctx context.Context, procedure string, params rpc.Params, dest interface{}) error {
	if err := rpc.ValidateCall(procedure, params); err != nil {
		return err
	}
	if params == nil {
		params = rpc.Params{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encoding params")
	}

	bearer := rpc.AccessTokenFrom(ctx)
	if bearer == "" {
		bearer = c.publicKey
	}
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + rpcPath + procedure,
		Headers: map[string]string{
			"apikey":        c.publicKey,
			"Authorization": "Bearer " + bearer,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		Body: body,
	}

	res, err := c.client.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", procedure)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res)
	}
	if dest == nil || res.StatusCode == http.StatusNoContent || strings.TrimSpace(res.Body) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Body), dest); err != nil {
		return errors.Wrapf(err, "decoding %s result", procedure)
	}
	return nil
}

func decodeError(res *rest.Response) error {
	rErr := &rpc.RemoteError{Status: res.StatusCode}
	if err := json.Unmarshal([]byte(res.Body), rErr); err != nil || rErr.Message == "" {
		rErr.Message = http.StatusText(res.StatusCode)
	}
	return rErr
}
