package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/siren-relay/internal/adapter/rpc"
)

// Client implements rpc.Invoker against an HTTP JSON feed gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	defaultDC  atomic.Int64
	logger     *slog.Logger
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// SetDefaultDC sets the datacenter used by calls without an explicit one.
func (c *Client) SetDefaultDC(dc int) {
	c.defaultDC.Store(int64(dc))
	c.logger.Info("default datacenter changed", "dc", dc)
}

// DefaultDC returns the current default datacenter, 0 if unset.
func (c *Client) DefaultDC() int {
	return int(c.defaultDC.Load())
}

// Invoke posts a single call to the gateway. A non-200 response carrying an
// error body is returned as *rpc.RemoteError.
func (c *Client) Invoke(ctx context.Context, method string, params any, opts rpc.CallOptions) (json.RawMessage, error) {
	dc := opts.DCID
	if dc == 0 {
		dc = c.DefaultDC()
	}

	body, err := json.Marshal(callRequest{Params: params, DCID: dc})
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}

	u := fmt.Sprintf("%s/call/%s", c.baseURL, url.PathEscape(method))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var remote rpc.RemoteError
		if json.Unmarshal(raw, &remote) == nil && remote.Code != 0 {
			return nil, &remote
		}
		return nil, fmt.Errorf("feed gateway error: status %d: %s", resp.StatusCode, raw)
	}

	var out callResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	return out.Result, nil
}

// Gateway wire types.

type callRequest struct {
	Params any `json:"params"`
	DCID   int `json:"dc_id,omitempty"`
}

type callResponse struct {
	Result json.RawMessage `json:"result"`
}
