package feedsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/normalize"
)

// Client talks to the relay HTTP API.
type Client struct {
	baseURL    string
	http       *http.Client
	normalizer *normalize.Normalizer
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		normalizer: normalize.New(),
	}
}

// PostResult is the relay answer to a ranking post.
type PostResult struct {
	Message string `json:"message"`
	Version int64  `json:"version"`
}

// Unchanged reports whether the relay ignored the post as a duplicate.
func (r PostResult) Unchanged() bool { return r.Version == 0 }

// RelaySnapshot is the relay buffer as a viewer reads it back: the version and the
// rows normalized in relay order.
type RelaySnapshot struct {
	Version int64
	Teams   []model.Team
}

// PostRanking sends rows to /api/postRanking.
func (c *Client) PostRanking(ctx context.Context, rows []Row) (PostResult, error) {
	var out PostResult
	err := c.do(ctx, http.MethodPost, "/api/postRanking", map[string]any{"data": rows}, &out)
	return out, err
}

// SetContestTime sends the contest window to /api/postContestTime.
func (c *Client) SetContestTime(ctx context.Context, start time.Time, minutes int) error {
	body := map[string]any{
		"startTime": start.Format(time.RFC3339),
		"duration":  minutes,
	}
	return c.do(ctx, http.MethodPost, "/api/postContestTime", body, nil)
}

// Ranking reads /api/getRanking and normalizes its rows the way the board does.
func (c *Client) Ranking(ctx context.Context) (RelaySnapshot, error) {
	const path = "/api/getRanking"
	raw, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return RelaySnapshot{}, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return RelaySnapshot{}, fmt.Errorf("%w: %s: decode: %w", ErrRelay, path, err)
	}
	return RelaySnapshot{Version: head.Version, Teams: c.normalizer.Payload(raw)}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.send(ctx, method, path, in)
	if err != nil || out == nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", ErrRelay, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRelay, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrRelay, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrRelay, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	return raw, nil
}
