package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/peakpurity/internal/httputil"
	"github.com/banshee-data/peakpurity/internal/purity"
)

// Client calls a remote purity server.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient returns a Client for the server at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL string, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Analyze posts one peak. A peak the server could not classify comes back
// as a *httputil.StatusError with status 422 and the error kind set.
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, "/api/purity", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Params returns the server's base parameters.
func (c *Client) Params(ctx context.Context) (purity.Params, error) {
	var p purity.Params
	err := c.do(ctx, http.MethodGet, "/api/params", nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return httputil.DecodeResponse(resp, out)
}
