// pkg/apiclient/client.go
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the normalized envelope for every downstream call. Failures
// are encoded here rather than as Go errors so the transport can pass
// them through verbatim; nothing is ever retried.
type Result struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Details    any    `json:"details,omitempty"`
	// Transport marks failures where no downstream response exists at all
	// (timeout, connection refused). A downstream 502/504 response is NOT
	// a transport failure; its body passes through in Details.
	Transport bool `json:"-"`
}

// Client issues authenticated HTTP requests against tenant APIs. The full
// URL is supplied per call because the manifest (and its api_base_url)
// can be reloaded at runtime.
type Client struct {
	http *http.Client
}

func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Do performs one request. body is sent as JSON for POST/PUT/PATCH; query
// is attached for GET. token is the resolved tenant credential — never the
// caller's delegation token.
func (c *Client) Do(ctx context.Context, method, fullURL, token string, body map[string]any, query url.Values) Result {
	if method == http.MethodGet && len(query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + query.Encode()
	}

	var reqBody io.Reader
	if body != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
		b, err := json.Marshal(body)
		if err != nil {
			return Result{Success: false, StatusCode: http.StatusInternalServerError, Error: fmt.Sprintf("encode request body: %v", err)}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return Result{Success: false, StatusCode: http.StatusInternalServerError, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Result{Success: false, StatusCode: http.StatusGatewayTimeout, Transport: true,
				Error: fmt.Sprintf("request timed out after %s", c.http.Timeout)}
		}
		return Result{Success: false, StatusCode: http.StatusBadGateway, Transport: true,
			Error: fmt.Sprintf("connection failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Success: true, StatusCode: resp.StatusCode, Data: decoded}
	}
	return Result{
		Success:    false,
		StatusCode: resp.StatusCode,
		Error:      fmt.Sprintf("downstream API returned %d", resp.StatusCode),
		Details:    decoded,
	}
}
