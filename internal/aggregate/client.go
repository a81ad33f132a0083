package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	stackedPath   = "/backend/aggregate/stacked"
	summariesPath = "/backend/aggregate/summaries"

	maxErrorBodyBytes = 64 * 1024
)

// Banner texts shown in place of the chart or table when a refresh fails.
const (
	BannerUnreachable = "Unable to connect to server"
	BannerTimeout     = "Request timed out"
	BannerFailed      = "An error occurred"
)

// Client reads aggregates from the backend over its two read-only endpoints.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a backend client. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    httpClient,
	}
}

// Stacked fetches the stacked time-series for the chart.
func (c *Client) Stacked(ctx context.Context, q ChartQuery) ([]Series, error) {
	var out []Series
	if err := c.get(ctx, stackedPath+"?"+q.Values().Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Summaries fetches one page of transaction summaries.
func (c *Client) Summaries(ctx context.Context, q SummaryQuery) (SummaryPage, error) {
	var out SummaryPage
	if err := c.get(ctx, summariesPath+"?"+q.Values().Encode(), &out); err != nil {
		return SummaryPage{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, pathAndQuery string, dst any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return newError(CodeTransport, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return newError(CodeTimeout, "backend request timed out", err)
		}
		return newError(CodeTransport, "backend unreachable", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Debug("backend response close failed", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &CodedError{
			Code:    CodeApplication,
			Message: applicationMessage(resp.StatusCode, body),
			Status:  resp.StatusCode,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if isTimeout(err) {
			return newError(CodeTimeout, "backend response timed out", err)
		}
		return newError(CodeDecode, "failed to decode backend response", err)
	}
	return nil
}

// applicationMessage prefers the backend's own JSON "message" field.
func applicationMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Message) != "" {
		return strings.TrimSpace(payload.Message)
	}
	return fmt.Sprintf("backend returned status %d", status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// BannerMessage maps a refresh failure to the single line shown to the user.
func BannerMessage(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case CodeTransport:
			return BannerUnreachable
		case CodeTimeout:
			return BannerTimeout
		}
	}
	return BannerFailed
}
