// Package remote is the vpd-tool client for the vpd-manager HTTP API.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pithecene-io/vpd/api"
	"github.com/pithecene-io/vpd/iox"
	"github.com/pithecene-io/vpd/types"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 30 * time.Second

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	ErrorType  string
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s (%s, http %d)", e.Message, e.ErrorType, e.StatusCode)
	}
	return fmt.Sprintf("%s (http %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one vpd-manager.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for addr, which is either host:port or a full
// http(s) URL.
func New(addr string, timeout time.Duration) (*Client, error) {
	if addr == "" {
		return nil, errors.New("remote: address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid address %q: %w", addr, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

// UpdateKeyword writes a keyword and returns the number of bytes written.
func (c *Client) UpdateKeyword(ctx context.Context, path types.Path, params types.WriteParams) (int, error) {
	var resp api.UpdateResponse
	err := c.post(ctx, "/v1/keyword/update", api.KeywordRequest{
		Path:    path,
		Record:  params.Record,
		Keyword: params.Keyword,
		Value:   params.Value,
	}, &resp)
	return resp.BytesWritten, err
}

// ReadKeyword reads a keyword.
func (c *Client) ReadKeyword(ctx context.Context, path types.Path, params types.ReadParams) (types.BinaryVector, error) {
	var resp api.ReadResponse
	err := c.post(ctx, "/v1/keyword/read", api.KeywordRequest{
		Path:    path,
		Record:  params.Record,
		Keyword: params.Keyword,
	}, &resp)
	return resp.Value, err
}

// CollectFru starts collection of one FRU.
func (c *Client) CollectFru(ctx context.Context, path types.Path) (*api.FruResponse, error) {
	var resp api.FruResponse
	if err := c.post(ctx, "/v1/fru/collect", api.PathRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteFru clears the VPD of one FRU.
func (c *Client) DeleteFru(ctx context.Context, path types.Path) (*api.FruResponse, error) {
	var resp api.FruResponse
	if err := c.post(ctx, "/v1/fru/delete", api.PathRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recollect starts recollection of every standby-replaceable FRU.
func (c *Client) Recollect(ctx context.Context) error {
	return c.post(ctx, "/v1/recollect", struct{}{}, nil)
}

// LocationCode returns the expanded location code of a FRU.
func (c *Client) LocationCode(ctx context.Context, path types.Path) (*api.FruResponse, error) {
	return c.fru(ctx, "/v1/fru/location-code", path)
}

// HwPath returns the EEPROM path of a FRU.
func (c *Client) HwPath(ctx context.Context, path types.Path) (*api.FruResponse, error) {
	return c.fru(ctx, "/v1/fru/hw-path", path)
}

// FruStatus returns the collection status of a FRU.
func (c *Client) FruStatus(ctx context.Context, path types.Path) (*api.FruResponse, error) {
	return c.fru(ctx, "/v1/fru/status", path)
}

// Status returns the system-wide collection view.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) fru(ctx context.Context, route string, path types.Path) (*api.FruResponse, error) {
	var resp api.FruResponse
	if err := c.do(ctx, http.MethodGet, route+"?path="+url.QueryEscape(path), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, route string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote: marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, route, bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method, route string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+route, body)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, route, err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.ErrorType = e.ErrorType
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s response: %w", route, err)
	}
	return nil
}
