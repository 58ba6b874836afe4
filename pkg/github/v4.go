package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/metrics"
)

const defaultV4Endpoint = "https://api.github.com/graphql"

// V4 is the GraphQL search client. It resolves the authenticated login and
// the initial quota snapshot at construction, and transparently retries
// rate-limited calls after the reset window.
type V4 struct {
	endpoint string
	token    string
	client   *http.Client
	login    string
	limit    limitGuard
	pacer    *rate.Limiter
	logger   zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// V4Option customizes a V4 client.
type V4Option func(*V4)

// WithV4Endpoint points the client at a non-default GraphQL endpoint.
func WithV4Endpoint(endpoint string) V4Option {
	return func(c *V4) { c.endpoint = endpoint }
}

// NewV4 creates a GraphQL client authenticated with token and probes the
// viewer login and rate limit.
func NewV4(token string, opts ...V4Option) (*V4, error) {
	c := &V4{
		endpoint: defaultV4Endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
		pacer:    rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		logger:   log.WithComponent("github.v4"),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}

	login, err := c.fetchLogin()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve viewer login: %w", err)
	}
	c.login = login
	c.logger.Info().Str("login", login).Msg("logged in")

	if err := c.RefreshRateLimit(); err != nil {
		return nil, fmt.Errorf("failed to probe rate limit: %w", err)
	}

	return c, nil
}

// Login returns the authenticated user's login.
func (c *V4) Login() string {
	return c.login
}

// Limits returns the current quota snapshot.
func (c *V4) Limits() RateLimit {
	return c.limit.get()
}

// Request runs a query, transparently retrying on rate-limit rejections:
// the call sleeps for the reported retry window and reissues. Any other
// error propagates.
func (c *V4) Request(description, query string, selectors ...string) (json.RawMessage, error) {
	for {
		data, err := c.Query(description, query, selectors...)
		if err != nil {
			var rle *RateLimitError
			if errors.As(err, &rle) {
				c.logger.Warn().
					Dur("retry_in", rle.RetryIn).
					Str("request", description).
					Msg("exceeded rate limit, retrying")
				c.sleep(rle.RetryIn)
				continue
			}
			c.logger.Error().Err(err).Str("request", description).Msg("request failed")
			return nil, err
		}
		c.logger.Debug().Str("request", description).Msg("request finished")
		return data, nil
	}
}

// Query runs a single GraphQL query attempt with pre-request admission and
// response classification. Selectors descend into the response document.
func (c *V4) Query(description, query string, selectors ...string) (json.RawMessage, error) {
	c.limit.admit("v4", c.now, c.sleep)

	if err := c.pacer.Wait(context.Background()); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues("v4", "transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues("v4", "transport_error").Inc()
		return nil, err
	}

	c.logger.Trace().Str("request", description).Int("status", resp.StatusCode).Msg("response")

	if len(data) == 0 {
		metrics.APIRequests.WithLabelValues("v4", "empty").Inc()
		return nil, ErrEmptyResponse
	}

	if resp.StatusCode == http.StatusForbidden && isRateLimitBody(data) {
		metrics.APIRequests.WithLabelValues("v4", "rate_limited").Inc()
		return nil, &RateLimitError{RetryIn: c.limit.retryIn(c.now)}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.APIRequests.WithLabelValues("v4", "bad_status").Inc()
		return nil, &StatusError{Status: resp.StatusCode}
	}

	document := json.RawMessage(data)
	for _, selector := range selectors {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(document, &object); err != nil {
			return nil, fmt.Errorf("failed to descend into %q of %s response: %w", selector, description, err)
		}
		document = object[selector]
	}

	// Successful pages piggyback a rateLimit section when the query asks
	// for one; pick it up without a separate probe.
	c.absorbRateLimit(data)

	metrics.APIRequests.WithLabelValues("v4", "ok").Inc()
	return document, nil
}

func (c *V4) fetchLogin() (string, error) {
	data, err := c.Query("login", "query { viewer { login } }", "data", "viewer", "login")
	if err != nil {
		return "", err
	}
	var login string
	if err := json.Unmarshal(data, &login); err != nil {
		return "", err
	}
	return login, nil
}

// RefreshRateLimit runs the dedicated rate-limit probe and stores the
// snapshot.
func (c *V4) RefreshRateLimit() error {
	data, err := c.Query("rate limit", "query { rateLimit { limit remaining resetAt } }", "data", "rateLimit")
	if err != nil {
		return err
	}
	var snapshot RateLimit
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	c.storeSnapshot(snapshot)

	limits := c.Limits()
	c.logger.Info().
		Int("limit", limits.Limit).
		Int("used", limits.Used).
		Time("reset_at", limits.ResetAt).
		Msg("rate limit")
	return nil
}

// absorbRateLimit updates the snapshot from a response document that
// carries a top-level data.rateLimit section.
func (c *V4) absorbRateLimit(data []byte) {
	var envelope struct {
		Data struct {
			RateLimit *RateLimit `json:"rateLimit"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}
	if envelope.Data.RateLimit == nil {
		return
	}
	c.storeSnapshot(*envelope.Data.RateLimit)
}

func (c *V4) storeSnapshot(snapshot RateLimit) {
	snapshot.Used = snapshot.Limit - snapshot.Remaining
	c.limit.set(snapshot)
	metrics.APIRateLimitRemaining.WithLabelValues("v4").Set(float64(snapshot.Remaining))
}
