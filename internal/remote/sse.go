package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cadence/internal/feedback"
	"cadence/internal/logging"
	"cadence/internal/realtime"
	"cadence/internal/wire"
)

// handshakeTimeout bounds how long we wait for the server's ready frame
// after the HTTP response arrives.
const handshakeTimeout = 15 * time.Second

// Open dials the SSE feedback event stream for an analysis. It returns once
// the server acknowledges the subscription with a ready frame, satisfying
// realtime.Opener: a nil error means subscribed.
func (c *Client) Open(ctx context.Context, analysisID string) (realtime.Conn, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	endpoint := c.endpoint("/api/analyses/" + url.PathEscape(analysisID) + "/feedback/events")
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	c.decorate(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open event stream: unexpected status %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	if err := awaitReady(streamCtx, reader); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}

	conn := &sseConn{
		client:     c,
		analysisID: analysisID,
		body:       resp.Body,
		cancel:     cancel,
		events:     make(chan feedback.Event, 16),
		ctx:        streamCtx,
	}
	go conn.loop(reader)
	return conn, nil
}

func awaitReady(ctx context.Context, reader *bufio.Reader) error {
	type frameResult struct {
		name string
		err  error
	}
	result := make(chan frameResult, 1)
	go func() {
		name, _, err := readFrame(reader)
		result <- frameResult{name: name, err: err}
	}()

	timer := time.NewTimer(handshakeTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("open event stream: timed out waiting for ready")
	case r := <-result:
		if r.err != nil {
			return fmt.Errorf("open event stream: %w", r.err)
		}
		if r.name != wire.EventReady {
			return fmt.Errorf("open event stream: expected ready frame, got %q", r.name)
		}
		return nil
	}
}

type sseConn struct {
	client     *Client
	analysisID string
	body       io.ReadCloser
	cancel     context.CancelFunc
	ctx        context.Context

	events chan feedback.Event
	err    error
}

func (c *sseConn) Events() <-chan feedback.Event { return c.events }

func (c *sseConn) Err() error { return c.err }

func (c *sseConn) Close() error {
	c.cancel()
	return c.body.Close()
}

func (c *sseConn) loop(reader *bufio.Reader) {
	defer close(c.events)

	for {
		name, data, err := readFrame(reader)
		if err != nil {
			// A close initiated by us is not a stream failure.
			if c.ctx.Err() == nil {
				c.err = fmt.Errorf("event stream closed: %w", err)
			}
			return
		}
		if name != wire.EventFeedback {
			continue
		}

		var payload wire.Event
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			c.client.logger.Warn("undecodable event payload dropped",
				logging.String(logging.FieldAnalysisID, c.analysisID),
				logging.Error(err))
			continue
		}

		select {
		case <-c.ctx.Done():
			return
		case c.events <- payload.ToDomain():
		}
	}
}

// readFrame reads one SSE frame: an optional "event:" line, one or more
// "data:" lines, terminated by a blank line. Comment lines (leading colon)
// are keep-alives and skipped.
func readFrame(reader *bufio.Reader) (name string, data string, err error) {
	var dataLines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if name == "" && len(dataLines) == 0 {
				continue
			}
			return name, strings.Join(dataLines, "\n"), nil
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
