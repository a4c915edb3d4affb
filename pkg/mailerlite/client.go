// Package mailerlite wraps the MailerLite Connect API operations used for
// lead sync: subscriber upsert and group assignment.
package mailerlite

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

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the MailerLite Connect API.
const defaultBaseURL = "https://connect.mailerlite.com/api"

// Client defines the MailerLite operations used by the sync adapter.
type Client interface {
	UpsertSubscriber(ctx context.Context, req UpsertRequest) (*Subscriber, error)
	AssignGroup(ctx context.Context, email, groupID string) error
	Ping(ctx context.Context) error
}

// UpsertRequest is the body for POST /subscribers. MailerLite upserts by
// email: an existing subscriber gets its fields and groups merged.
type UpsertRequest struct {
	Email  string            `json:"email"`
	Fields map[string]string `json:"fields,omitempty"`
	Groups []string          `json:"groups,omitempty"`
	Status string            `json:"status,omitempty"`
}

// Subscriber is the relevant slice of the subscriber resource.
type Subscriber struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

type subscriberEnvelope struct {
	Data Subscriber `json:"data"`
}

// APIError is returned when MailerLite responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailerlite: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsBenignConflict reports whether err is a conflict that means the
// subscriber already exists in the desired state: HTTP 409, or a 422
// validation response saying the email is already taken. These count as
// success and must not be retried.
func IsBenignConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "already exists") || strings.Contains(body, "already been taken")
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(base string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request throttle (2 req/s, inside
// MailerLite's 120 req/min limit).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a MailerLite client with the given API token.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) UpsertSubscriber(ctx context.Context, req UpsertRequest) (*Subscriber, error) {
	if req.Email == "" {
		return nil, eris.New("mailerlite: upsert requires an email")
	}
	var resp subscriberEnvelope
	if err := c.do(ctx, http.MethodPost, "/subscribers", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *httpClient) AssignGroup(ctx context.Context, email, groupID string) error {
	path := fmt.Sprintf("/subscribers/%s/groups/%s", url.PathEscape(email), url.PathEscape(groupID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Ping verifies the token with a cheap read.
func (c *httpClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/groups?limit=1", nil, nil)
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "mailerlite: rate limit")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "mailerlite: marshal request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "mailerlite: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "mailerlite: %s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return eris.Wrap(err, "mailerlite: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "mailerlite: decode response")
		}
	}
	return nil
}
