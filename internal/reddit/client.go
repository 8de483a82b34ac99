// Package reddit is a low-level facade over the Reddit HTTP API. It exposes
// one method per abstract verb, attaches the bot user-agent and bearer-token
// headers, and hands back the raw status and body. Non-2xx responses are not
// errors here; handlers observe them through the status code.
package reddit

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/reddit-broker/internal/httpx"
)

const (
	defaultOAuthBase = "https://oauth.reddit.com"
	defaultWWWBase   = "https://www.reddit.com"
)

// Response is the raw result of a Reddit API call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client talks to the Reddit API on behalf of a single bot account.
type Client struct {
	http      *http.Client
	userAgent string
	oauthBase string
	wwwBase   string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the oauth and www endpoints; used by tests to point
// the client at a local server.
func WithBaseURLs(oauthBase, wwwBase string) Option {
	return func(c *Client) {
		c.oauthBase = strings.TrimRight(oauthBase, "/")
		c.wwwBase = strings.TrimRight(wwwBase, "/")
	}
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Reddit API client with the given user agent and
// request timeout.
func NewClient(userAgent string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		oauthBase: defaultOAuthBase,
		wwwBase:   defaultWWWBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs an authorized GET against the oauth host.
func (c *Client) get(ctx context.Context, auth *Auth, path string, query url.Values) (*Response, error) {
	build := func() (*http.Request, error) {
		u := c.oauthBase + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, auth)
		return req, nil
	}
	return c.do(ctx, build)
}

// postForm performs an authorized form POST against the oauth host.
func (c *Client) postForm(ctx context.Context, auth *Auth, path string, form url.Values) (*Response, error) {
	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.oauthBase+path, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, auth)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	return c.do(ctx, build)
}

// postBasic performs a form POST against the www host using HTTP Basic
// client-id:client-secret credentials. Login and token revocation go through
// here.
func (c *Client) postBasic(ctx context.Context, clientID, clientSecret, path string, form url.Values) (*Response, error) {
	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.wwwBase+path, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(clientID, clientSecret)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	return c.do(ctx, build)
}

func (c *Client) setHeaders(req *http.Request, auth *Auth) {
	req.Header.Set("User-Agent", c.userAgent)
	if auth != nil {
		req.Header.Set("Authorization", auth.Header())
	}
}

func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*Response, error) {
	resp, err := httpx.Do(ctx, c.http, build)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// listingQuery builds the shared limit/after/before pagination parameters.
// Zero values mean "do not send".
func listingQuery(limit int, after, before string) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if after != "" {
		q.Set("after", after)
	}
	if before != "" {
		q.Set("before", before)
	}
	return q
}
