// Package matchapi talks to the matching service over its HTTP contract:
// POST /enqueue, GET /getMatch and GET /messages/<sessionId>.
package matchapi

import (
	"anonchat/app/internal/models"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("matchapi"),
	}
}

// Enqueue submits a profile to the matching pool. Only the status is inspected.
func (c *Client) Enqueue(ctx context.Context, profile models.QueuedProfile) error {
	body, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/enqueue", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build enqueue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "enqueue", nil)
}

// GetMatch asks whether the participant has been paired yet.
func (c *Client) GetMatch(ctx context.Context, participantID string) (models.MatchResponse, error) {
	var resp models.MatchResponse

	u := c.baseURL + "/getMatch?" + url.Values{"participantId": {participantID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return resp, fmt.Errorf("build getMatch request: %w", err)
	}

	err = c.do(req, "getMatch", &resp)
	return resp, err
}

// History returns the ordered messages of a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage

	u := c.baseURL + "/messages/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	if err := c.do(req, "history", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	c.log.Debug("request done",
		zap.String("op", op),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(started)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &StatusError{Op: op, Code: res.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
