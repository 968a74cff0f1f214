package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadence/internal/feedback"
	"cadence/internal/logging"
	"cadence/internal/wire"
)

// ErrUnavailable marks transport-level failures the caller may retry.
var ErrUnavailable = errors.New("feedback API unavailable")

// Client talks to the generation backend.
type Client struct {
	base   *url.URL
	token  string
	logger *slog.Logger

	// fetch gets a request timeout; stream must block indefinitely while
	// the event channel is quiet, so it never times out.
	fetch  *http.Client
	stream *http.Client
}

// NewClient builds a client for the given base URL. The timeout applies to
// fetch requests only.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base:   base,
		token:  strings.TrimSpace(token),
		logger: logging.NewComponentLogger(logger, "remote"),
		fetch:  &http.Client{Timeout: timeout},
		stream: &http.Client{},
	}, nil
}

// FetchFeedbackStatus returns the full status slice for an analysis.
func (c *Client) FetchFeedbackStatus(ctx context.Context, analysisID string) ([]feedback.Record, error) {
	endpoint := c.endpoint("/api/analyses/" + url.PathEscape(analysisID) + "/feedback")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.fetch.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feedback status: unexpected status %d", resp.StatusCode)
	}

	var payload []wire.Record
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode feedback status: %w", err)
	}

	records := make([]feedback.Record, 0, len(payload))
	for _, rec := range payload {
		records = append(records, rec.ToDomain())
	}
	return records, nil
}

// Health verifies the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/healthz"), nil)
	if err != nil {
		return err
	}
	c.decorate(req)

	resp, err := c.fetch.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	ref := *c.base
	ref.Path = c.base.Path + path
	return ref.String()
}

func (c *Client) decorate(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Correlation-ID", uuid.NewString())
}
