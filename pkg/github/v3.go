package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/metrics"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

const defaultV3Endpoint = "https://api.github.com"

// V3 is the REST mutation client. All calls share one quota snapshot parsed
// from response headers; admission happens before every request.
type V3 struct {
	endpoint string
	token    string
	client   *http.Client
	limit    limitGuard
	pacer    *rate.Limiter
	logger   zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// V3Option customizes a V3 client.
type V3Option func(*V3)

// WithV3Endpoint points the client at a non-default API root.
func WithV3Endpoint(endpoint string) V3Option {
	return func(c *V3) { c.endpoint = endpoint }
}

// NewV3 creates a REST client authenticated with token.
func NewV3(token string, opts ...V3Option) *V3 {
	c := &V3{
		endpoint: defaultV3Endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
		// Local pacer smooths bursts below the remote abuse detection
		// threshold; the quota snapshot still governs admission.
		pacer:  rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		logger: log.WithComponent("github.v3"),
		now:    time.Now,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes one REST call. Accepted statuses are the success set; out may
// be nil when the body is to be discarded and the status is the only success
// signal. A non-nil out with an empty body fails with ErrEmptyResponse.
func (c *V3) do(ctx context.Context, method, path string, body any, accepted []int, out any) error {
	c.limit.admit("v3", c.now, c.sleep)

	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues("v3", "transport_error").Inc()
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues("v3", "transport_error").Inc()
		return err
	}

	c.updateLimits(resp.Header)

	c.logger.Trace().Str("path", path).Int("status", resp.StatusCode).Msg("response")

	if resp.StatusCode == http.StatusForbidden && isRateLimitBody(data) {
		metrics.APIRequests.WithLabelValues("v3", "rate_limited").Inc()
		return &RateLimitError{RetryIn: c.limit.retryIn(c.now)}
	}

	if !statusAccepted(resp.StatusCode, accepted) {
		metrics.APIRequests.WithLabelValues("v3", "bad_status").Inc()
		return &StatusError{Status: resp.StatusCode}
	}

	metrics.APIRequests.WithLabelValues("v3", "ok").Inc()

	if out == nil {
		// Status is the only success signal; any body is discarded.
		return nil
	}
	if len(data) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// updateLimits parses the X-RateLimit response headers into the shared
// snapshot. Responses without the headers leave the snapshot untouched.
func (c *V3) updateLimits(header http.Header) {
	limit, err1 := strconv.Atoi(header.Get("X-RateLimit-Limit"))
	remaining, err2 := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	reset, err3 := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}
	snapshot := RateLimit{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Unix(reset, 0),
	}
	c.limit.set(snapshot)
	metrics.APIRateLimitRemaining.WithLabelValues("v3").Set(float64(remaining))
	c.logger.Debug().
		Int("remaining", remaining).
		Time("reset_at", snapshot.ResetAt).
		Msg("rate limits updated")
}

// Limits returns the current quota snapshot.
func (c *V3) Limits() RateLimit {
	return c.limit.get()
}

// CreateFork requests a server-side fork of owner/name and returns the raw
// repository payload. The remote acknowledges fork creation with 202 before
// the copy completes.
func (c *V3) CreateFork(ctx context.Context, owner, name string) (json.RawMessage, error) {
	var out json.RawMessage
	path := fmt.Sprintf("/repos/%s/%s/forks", owner, name)
	if err := c.do(ctx, http.MethodPost, path, nil, []int{http.StatusAccepted}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRepository removes owner/name. Expects 204 and no body.
func (c *V3) DeleteRepository(ctx context.Context, owner, name string) error {
	path := fmt.Sprintf("/repos/%s/%s", owner, name)
	return c.do(ctx, http.MethodDelete, path, nil, []int{http.StatusNoContent}, nil)
}

// Pull is the REST projection of a pull request.
type Pull struct {
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	State    string     `json:"state"`
	MergedAt *time.Time `json:"merged_at"`
}

// Status maps the REST state fields onto the tracked PR status.
func (p *Pull) Status() types.PRStatus {
	switch {
	case p.State == "open":
		return types.PROpen
	case p.MergedAt != nil:
		return types.PRMerged
	default:
		return types.PRClosed
	}
}

// CreatePullParams are the fields of a pull-request creation call.
type CreatePullParams struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// CreatePull opens a pull request against owner/name. Expects 201.
func (c *V3) CreatePull(ctx context.Context, owner, name string, params CreatePullParams) (*Pull, error) {
	var out Pull
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, name)
	if err := c.do(ctx, http.MethodPost, path, params, []int{http.StatusCreated}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPull fetches one pull request by number. Expects 200.
func (c *V3) GetPull(ctx context.Context, owner, name string, number int) (*Pull, error) {
	var out Pull
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, name, number)
	if err := c.do(ctx, http.MethodGet, path, nil, []int{http.StatusOK}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPulls fetches the pull requests of owner/name filtered by head
// ("login:branch"). Expects 200.
func (c *V3) ListPulls(ctx context.Context, owner, name, head string) ([]Pull, error) {
	var out []Pull
	path := fmt.Sprintf("/repos/%s/%s/pulls?state=all&head=%s", owner, name, head)
	if err := c.do(ctx, http.MethodGet, path, nil, []int{http.StatusOK}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications fetches the raw notifications feed. Expects 200. The feed
// mapping downstream is intentionally a stub.
func (c *V3) Notifications(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, []int{http.StatusOK}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func statusAccepted(status int, accepted []int) bool {
	for _, s := range accepted {
		if s == status {
			return true
		}
	}
	return false
}

// isRateLimitBody reports whether the error body carries the rate-limit
// rejection message.
func isRateLimitBody(data []byte) bool {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return false
	}
	return isRateLimitMessage(body.Message)
}
