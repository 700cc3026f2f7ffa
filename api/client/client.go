// Package client is an HTTP client of the ballot node API. It implements
// the ledger, relayer and reveal authority interfaces used by voters, so a
// voter can run against a remote node.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vocdoni/confidential-ballot/api"
	"github.com/vocdoni/confidential-ballot/fhe"
	"github.com/vocdoni/confidential-ballot/ledger"
)

const (
	// DefaultTimeout is the timeout of a single HTTP request.
	DefaultTimeout = 30 * time.Second
	maxResponse    = 8 << 20
)

// remoteErrors maps API error codes back to the errors they were built from.
var remoteErrors = map[int]error{}

func init() {
	for _, e := range []api.Error{
		api.ErrAlreadyVoted,
		api.ErrNotVoted,
		api.ErrInvalidCategory,
		api.ErrInvalidInputProof,
		api.ErrInvalidCiphertextInput,
		api.ErrAuthorizationExpired,
		api.ErrAuthorizationRejected,
		api.ErrVoteNotSigned,
	} {
		remoteErrors[e.Code] = e.Err
	}
}

// HTTPclient is a client of the node HTTP API.
type HTTPclient struct {
	c    *http.Client
	addr *url.URL
}

// New returns a client for the API served at addr.
func New(addr string) (*HTTPclient, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid node address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid node address scheme %q", u.Scheme)
	}
	return &HTTPclient{
		c:    &http.Client{Timeout: DefaultTimeout},
		addr: u,
	}, nil
}

// Request performs a request with an optional JSON body. Params are query
// key/value pairs. It returns the response body and status code.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	return c.request(context.Background(), method, jsonBody, params, urlPath...)
}

func (c *HTTPclient) request(ctx context.Context, method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	if len(params)%2 != 0 {
		return nil, 0, fmt.Errorf("odd number of query params")
	}
	var body io.Reader
	if jsonBody != nil {
		data, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("could not marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	u := c.addr.JoinPath(urlPath...)
	q := u.Query()
	for i := 0; i < len(params); i += 2 {
		q.Set(params[i], params[i+1])
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, 0, err
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// call performs a request and decodes a successful JSON response into out.
// Transport failures and server side errors are wrapped in unavailable;
// API errors are mapped back to their sentinel errors.
func (c *HTTPclient) call(ctx context.Context, unavailable error, method string, in, out any, params []string, urlPath ...string) error {
	data, status, err := c.request(ctx, method, in, params, urlPath...)
	if err != nil {
		return fmt.Errorf("%w: %v", unavailable, err)
	}
	if status == http.StatusOK {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("could not decode response: %w", err)
		}
		return nil
	}
	return decodeError(unavailable, status, data)
}

func decodeError(unavailable error, status int, data []byte) error {
	var apiErr api.ErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != 0 {
		if sentinel, ok := remoteErrors[apiErr.Code]; ok {
			if apiErr.Error == sentinel.Error() {
				return sentinel
			}
			detail := strings.TrimPrefix(apiErr.Error, sentinel.Error()+": ")
			return fmt.Errorf("%w: %s", sentinel, detail)
		}
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s (code %d)", unavailable, apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("api error %d: %s", apiErr.Code, apiErr.Error)
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: http status %d", unavailable, status)
	}
	return fmt.Errorf("unexpected http status %d: %s", status, strings.TrimSpace(string(data)))
}

// Ping checks that the node answers.
func (c *HTTPclient) Ping(ctx context.Context) error {
	_, status, err := c.request(ctx, http.MethodGet, nil, nil, api.PingEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("ping returned http status %d", status)
	}
	return nil
}

// Info returns the node identities.
func (c *HTTPclient) Info(ctx context.Context) (*api.NodeInfo, error) {
	info := &api.NodeInfo{}
	if err := c.call(ctx, ledger.ErrLedgerUnavailable, http.MethodGet, nil, info, nil, api.InfoEndpoint); err != nil {
		return nil, err
	}
	return info, nil
}

// NetworkKey implements fhe.Relayer.
func (c *HTTPclient) NetworkKey(ctx context.Context) (*fhe.NetworkKey, error) {
	key := &fhe.NetworkKey{}
	if err := c.call(ctx, fhe.ErrEncryptionUnavailable, http.MethodGet, nil, key, nil, api.RelayerKeyEndpoint); err != nil {
		return nil, err
	}
	return key, nil
}

// VerifyInput implements fhe.Relayer.
func (c *HTTPclient) VerifyInput(ctx context.Context, req *fhe.InputRequest) (*fhe.EncryptedInput, error) {
	input := &fhe.EncryptedInput{}
	if err := c.call(ctx, fhe.ErrEncryptionUnavailable, http.MethodPost, req, input, nil, api.RelayerInputsEndpoint); err != nil {
		return nil, err
	}
	return input, nil
}

// UserDecrypt implements fhe.RevealAuthority.
func (c *HTTPclient) UserDecrypt(ctx context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error) {
	resp := &fhe.UserDecryptResponse{}
	if err := c.call(ctx, fhe.ErrRevealUnavailable, http.MethodPost, req, resp, nil, api.UserDecryptEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// isUnavailable reports whether err is one of the transport errors.
func isUnavailable(err error) bool {
	return errors.Is(err, ledger.ErrLedgerUnavailable) ||
		errors.Is(err, fhe.ErrEncryptionUnavailable) ||
		errors.Is(err, fhe.ErrRevealUnavailable)
}
