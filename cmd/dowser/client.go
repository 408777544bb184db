// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by daemon
// commands. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// daemonClient provides HTTP access to a running dowser daemon.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

// newDaemonClient creates a client targeting the given host:port address.
func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *daemonClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into dest. A nil body posts an empty JSON object.
func (c *daemonClient) postJSON(path string, body, dest any) error {
	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeCLIRequestFailure, "encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

// deleteJSON performs a DELETE request and decodes the JSON response into
// dest.
func (c *daemonClient) deleteJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// do sends the request and decodes the response. A refused connection
// reports CodeCLIEngineNotRunning so commands can print a friendly hint.
func (c *daemonClient) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return dowsererr.New(dowsererr.CodeCLIEngineNotRunning,
				"dowser daemon is not running (connection refused)")
		}
		return dowsererr.Errorf(dowsererr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return dowsererr.Errorf(dowsererr.CodeCLIRequestFailure,
			"daemon returned status %d: %s", resp.StatusCode, string(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return dowsererr.Errorf(dowsererr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
