package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotConfigured is returned when no service URL is set.
var ErrNotConfigured = errors.New("analysis service not configured")

// Client posts a session Context to an HTTP analysis endpoint and parses
// the JSON report it answers with.
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	maxRetries uint64
	httpClient *http.Client
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		url:        url,
		apiKey:     apiKey,
		timeout:    timeout,
		maxRetries: 2,
		httpClient: &http.Client{},
	}
}

type analyzeRequest struct {
	Context Context `json:"context"`
}

// Analyze runs one analysis. The whole call, retries included, is bounded by
// the client timeout.
func (c *Client) Analyze(ctx context.Context, in Context) (Report, error) {
	if c.url == "" {
		return Report{}, ErrNotConfigured
	}
	body, err := json.Marshal(analyzeRequest{Context: in})
	if err != nil {
		return Report{}, fmt.Errorf("encode analysis request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var report Report
	op := func() error {
		raw, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		report, err = parseReport(raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("analysis service: status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, backoff.Permanent(fmt.Errorf("analysis service: status %d", resp.StatusCode))
	}
	return raw, nil
}

// parseReport accepts the report as raw JSON, optionally wrapped in a
// markdown code fence.
func parseReport(raw []byte) (Report, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var report Report
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		return Report{}, fmt.Errorf("decode analysis report: %w", err)
	}
	if report.Summary == "" {
		return Report{}, errors.New("decode analysis report: missing summary")
	}
	if report.Gaps == nil {
		report.Gaps = []Gap{}
	}
	return report, nil
}
