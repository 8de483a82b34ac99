// Package httpx instruments outbound HTTP requests to Reddit.
//
// Unlike a generic retrying helper, requests here are made exactly once:
// retrying on the broker's side would reorder replies and second-guess the
// client's style table, which owns the retry decision.
package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/onnwee/reddit-broker/internal/metrics"
)

// Do builds and performs a single HTTP request, recording the outcome in the
// Reddit request metrics.
func Do(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		metrics.RedditHTTPRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RedditHTTPRequests.WithLabelValues(StatusClass(resp.StatusCode)).Inc()
	return resp, nil
}

// StatusClass reduces an HTTP status to its class label ("2xx" .. "5xx").
// Out-of-range statuses are reported verbatim.
func StatusClass(status int) string {
	if status >= 100 && status <= 599 {
		return strconv.Itoa(status/100) + "xx"
	}
	return strconv.Itoa(status)
}
