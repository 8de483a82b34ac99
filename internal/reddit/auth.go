package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/reddit-broker/internal/logger"
	"github.com/onnwee/reddit-broker/internal/metrics"
	"github.com/onnwee/reddit-broker/internal/secrets"
)

// FreshnessFloor is the minimum remaining lifetime a cached token must have
// for a handler invocation to use it. Tokens closer to expiry than this are
// replaced first.
const FreshnessFloor = 15 * time.Minute

// Auth is a bearer token for the bot account.
type Auth struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Scope       string
}

// Header returns the Authorization header value for this token.
func (a *Auth) Header() string {
	return "bearer " + a.AccessToken
}

// FreshAt reports whether the token still has at least FreshnessFloor of
// lifetime left at the given instant.
func (a *Auth) FreshAt(now time.Time) bool {
	return a.ExpiresAt.Sub(now) >= FreshnessFloor
}

// ErrLoginFailed is returned by Manager.Refresh when Reddit rejects the
// password grant with a non-2xx status.
var ErrLoginFailed = fmt.Errorf("reddit login failed")

// Manager issues and caches the bearer token for the bot account. The
// dispatch loop decides when to refresh; Manager only executes the exchange.
// It is not safe for concurrent use: the dispatch loop is its sole caller.
type Manager struct {
	client       *Client
	username     string
	password     string
	clientID     string
	clientSecret string
	cached       *Auth
	now          func() time.Time
	log          *slog.Logger
}

// NewManager creates a token manager for the given bot credentials.
func NewManager(client *Client, username, password, clientID, clientSecret string) *Manager {
	return &Manager{
		client:       client,
		username:     username,
		password:     password,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
		log:          logger.WithComponent("auth"),
	}
}

// Current returns the cached token, or nil if none is held.
func (m *Manager) Current() *Auth {
	return m.cached
}

// NeedsRefresh reports whether the cached token is absent or too close to
// expiry to back another handler invocation.
func (m *Manager) NeedsRefresh() bool {
	return m.cached == nil || !m.cached.FreshAt(m.now())
}

// Invalidate drops the cached token. Called after observing a 401 from any
// upstream call, regardless of the token's nominal expiry.
func (m *Manager) Invalidate() {
	if m.cached == nil {
		return
	}
	m.cached = nil
	metrics.TokenInvalidations.Inc()
	m.log.Debug("cached token invalidated")
}

// Refresh logs the bot account in and replaces the cached token. On a non-2xx
// login response the cached token is left empty and ErrLoginFailed is
// returned.
func (m *Manager) Refresh(ctx context.Context) (*Auth, error) {
	m.cached = nil

	resp, err := m.client.Login(ctx, m.username, m.password, m.clientID, m.clientSecret)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		m.log.Warn("login rejected", "status", resp.StatusCode, "client_id", secrets.Mask(m.clientID))
		return nil, fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if parsed.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: empty access token", ErrLoginFailed)
	}

	m.cached = &Auth{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
		ExpiresAt:   m.now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
		Scope:       parsed.Scope,
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	m.log.Debug("bearer token refreshed", "expires_in_s", parsed.ExpiresIn, "scope", parsed.Scope)
	return m.cached, nil
}

// Revoke invalidates the cached token on Reddit's side. Called during clean
// shutdown; a failed revocation only costs the token its remaining lifetime.
func (m *Manager) Revoke(ctx context.Context) error {
	if m.cached == nil {
		return nil
	}
	resp, err := m.client.RevokeToken(ctx, m.cached, m.clientID, m.clientSecret)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revoke rejected: status %d", resp.StatusCode)
	}
	m.cached = nil
	return nil
}

// SetNowFunc overrides the clock; for use in tests only.
func (m *Manager) SetNowFunc(now func() time.Time) { m.now = now }
