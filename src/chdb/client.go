/*
Copyright (c) Akim Faskhutdinov

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package chdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"

	"github.com/akimrx/ch-metrics-cleaner/src/errs"
)

// Format selects how Execute returns the server's answer.
type Format string

const (
	// FormatStructured appends FORMAT JSON to the statement and parses the
	// row-oriented response into Result.Rows.
	FormatStructured Format = "structured"

	// FormatRaw returns the response body verbatim in Result.Text.
	FormatRaw Format = "raw"
)

// Row is one parsed result row. ClickHouse quotes 64-bit integers in its
// JSON output, so numeric columns may arrive as strings.
type Row map[string]any

// Result holds the outcome of one statement execution. Rows is populated
// for FormatStructured, Text for FormatRaw.
type Result struct {
	Rows []Row
	Text string
}

// Config holds construction parameters for Client.
type Config struct {
	// BaseURL is the HTTP endpoint of the server, e.g. "http://ch1:8123".
	BaseURL string

	// User and Password are passed through as query parameters on every
	// request; the client adds no other authentication.
	User     string
	Password string

	// Timeout bounds a single request. Default: 30s.
	Timeout time.Duration
}

// Client executes SQL statements over the ClickHouse HTTP interface, one
// POST per statement. It performs no retries: an ALTER TABLE DELETE starts
// a mutation server-side and must not be re-issued on a flaky link.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	user       string
	password   string
}

func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{Timeout: config.Timeout}
	retryClient.RetryMax = 0
	retryClient.Logger = nil
	retryClient.RequestLogHook = requestLogHook
	// Never retry, and hand back error responses untouched so the caller
	// sees the real status code and body.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		return false, nil
	}

	return &Client{
		httpClient: retryClient,
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		user:       config.User,
		password:   config.Password,
	}
}

// Execute runs one statement against the query endpoint and returns the
// parsed rows (FormatStructured) or the response text (FormatRaw). Any
// transport failure or non-2xx response yields an errs.QueryError carrying
// the statement, status code and response body.
func (c *Client) Execute(ctx context.Context, statement string, format Format) (*Result, error) {
	stmt := statement
	if format == FormatStructured {
		stmt += " FORMAT JSON"
	}

	params := url.Values{}
	params.Set("user", c.user)
	params.Set("password", c.password)
	params.Set("query", stmt)
	requestURL := c.baseURL + "/?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		log.Warnf("query failed: duration=%s, error=%v", duration, err)
		return nil, errs.NewQueryError(statement, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewQueryError(statement, resp.StatusCode, "", err)
	}

	log.Infof("query completed: status=%d, duration=%s", resp.StatusCode, duration)
	log.Debugf("response body: %s", body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.NewQueryError(statement, resp.StatusCode, string(body), nil)
	}

	if format == FormatRaw {
		return &Result{Text: string(body)}, nil
	}

	var envelope struct {
		Data []Row `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON response for query %q: %w", statement, err)
	}
	return &Result{Rows: envelope.Data}, nil
}

// requestLogHook logs each request attempt for observability.
func requestLogHook(logger retryablehttp.Logger, req *http.Request, attemptNum int) {
	log.Debugf("Attempting request: method=%s, host=%s", req.Method, req.URL.Host)
}
