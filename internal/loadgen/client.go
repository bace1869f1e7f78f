package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/sonar/internal/adapters/catalog"
	"github.com/okian/sonar/internal/domain/types"
)

const defaultRetryAfter = 100 * time.Millisecond

// Client talks to the sonar HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
	retries int
}

// NewClient returns a Client that retries a request up to retries times
// while the server answers 429.
func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retries: max(retries, 1),
	}
}

// Health checks that the metrics endpoint answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// UpsertArtists loads artists into the server catalog.
func (c *Client) UpsertArtists(ctx context.Context, artists []catalog.Artist) (int, error) {
	var out struct {
		Upserted int `json:"upserted"`
	}
	if err := c.do(ctx, http.MethodPost, "/artists", map[string]any{"artists": artists}, &out); err != nil {
		return 0, err
	}
	return out.Upserted, nil
}

// Submit posts one ranking job.
func (c *Client) Submit(ctx context.Context, job types.RankingJob) (types.Ack, error) {
	var ack types.Ack
	err := c.do(ctx, http.MethodPost, "/rankings", job, &ack)
	return ack, err
}

// TopN fetches the first limit ranked events for userID.
func (c *Client) TopN(ctx context.Context, userID string, limit int) ([]types.RankedEvent, error) {
	var out struct {
		Events []types.RankedEvent `json:"events"`
	}
	path := "/rankings/" + url.PathEscape(userID) + "?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Rank fetches one event's position in userID's ranking.
func (c *Client) Rank(ctx context.Context, userID, eventID string) (types.RankedEvent, error) {
	var out types.RankedEvent
	path := "/rankings/" + url.PathEscape(userID) + "/" + url.PathEscape(eventID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = b
	}

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && attempt < c.retries:
			if err := sleep(ctx, retryAfter(resp.Header.Get("Retry-After"), attempt)); err != nil {
				return err
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
		case resp.StatusCode >= http.StatusBadRequest:
			return fmt.Errorf("%s %s: %w %d: %s", method, path, ErrStatus, resp.StatusCode, bytes.TrimSpace(data))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// retryAfter honours a Retry-After seconds header and otherwise backs off
// linearly.
func retryAfter(header string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Duration(attempt) * defaultRetryAfter
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
