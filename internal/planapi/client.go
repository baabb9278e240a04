// Package planapi talks to the remote planning backend and normalizes its answers.
package planapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/metalagman/aletheia/internal/model"
	"github.com/rs/zerolog/log"
)

// Client issues planning requests against a backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a planning backend client.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("planning api base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid planning api base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		cfg: Config{
			BaseURL: baseURL,
			Timeout: timeout,
		},
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// RequestPlan submits goal to the backend and returns the normalized plan.
// userEmail is optional and forwarded as the caller identity.
func (c *Client) RequestPlan(ctx context.Context, goal, userEmail string) (model.Plan, error) {
	if strings.TrimSpace(goal) == "" {
		return model.Plan{}, ErrEmptyGoal
	}

	status, payload, err := c.roundTrip(ctx, http.MethodPost, planPath, nil, planRequest{
		Goal:      goal,
		UserEmail: strings.TrimSpace(userEmail),
	})
	if err != nil {
		return model.Plan{}, err
	}

	receivedAt := time.Now()
	plan, err := Normalize(goal, payload, receivedAt)
	if err != nil {
		log.Warn().Err(err).Msg("plan response rejected")
		return model.Plan{}, err
	}
	plan.Logs = SynthesizeLogs(plan, http.MethodPost, planPath, status, receivedAt)
	return plan, nil
}

// History returns plans previously generated for userEmail.
func (c *Client) History(ctx context.Context, userEmail string) ([]model.Plan, error) {
	query := url.Values{}
	query.Set("user_email", strings.TrimSpace(userEmail))

	_, payload, err := c.roundTrip(ctx, http.MethodGet, historyPath, query, nil)
	if err != nil {
		return nil, err
	}

	var records []any
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, malformed("decode history: %v", err)
	}
	receivedAt := time.Now()
	plans := make([]model.Plan, 0, len(records))
	for i, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			return nil, malformed("history[%d] is not an object", i)
		}
		plan, err := normalizeDocument("", obj, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Health fetches backend diagnostics.
func (c *Client) Health(ctx context.Context) (Health, error) {
	_, payload, err := c.roundTrip(ctx, http.MethodGet, healthPath, nil, nil)
	if err != nil {
		return Health{}, err
	}
	var out Health
	if err := json.Unmarshal(payload, &out); err != nil {
		return Health{}, malformed("decode health: %v", err)
	}
	return out, nil
}

// roundTrip performs one bounded request and returns the status and body of a 2xx answer.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, c.transportError(ctx, reqCtx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, c.transportError(ctx, reqCtx, err)
	}

	log.Debug().
		Str("method", method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("planning api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, newServerError(resp.StatusCode, payload)
	}
	return resp.StatusCode, payload, nil
}

func (c *Client) transportError(parent, reqCtx context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("plan request: %w", context.Canceled)
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w (after %s)", ErrTimeout, c.cfg.Timeout)
	}
	return &NetworkError{Err: err}
}

func newServerError(status int, payload []byte) *ServerError {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return &ServerError{StatusCode: status, Detail: unreachableDetail}
	}
	if detail, ok := body.Detail.(string); ok && strings.TrimSpace(detail) != "" {
		return &ServerError{StatusCode: status, Detail: detail}
	}
	return &ServerError{StatusCode: status, Detail: fmt.Sprintf("Server responded with %d", status)}
}

// normalizeBaseURL strips whitespace and trailing slashes.
func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
