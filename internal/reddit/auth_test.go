package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestAuthFreshAt(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	auth := &Auth{AccessToken: "t", ExpiresAt: now.Add(time.Hour)}

	if !auth.FreshAt(now) {
		t.Error("hour-long token reported stale")
	}
	if !auth.FreshAt(now.Add(45 * time.Minute)) {
		t.Error("token exactly at the freshness floor reported stale")
	}
	if auth.FreshAt(now.Add(46 * time.Minute)) {
		t.Error("token inside the freshness floor reported fresh")
	}
	if auth.FreshAt(now.Add(2 * time.Hour)) {
		t.Error("expired token reported fresh")
	}
}

func TestManagerRefresh(t *testing.T) {
	logins := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		logins++
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":3600,"scope":"*"}`, logins)
	})
	m := NewManager(client, "bot", "hunter2", "cid", "csecret")

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	m.SetNowFunc(func() time.Time { return now })

	if !m.NeedsRefresh() {
		t.Error("empty manager does not need refresh")
	}
	if m.Current() != nil {
		t.Error("empty manager holds a token")
	}

	auth, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if auth.AccessToken != "tok-1" || auth.Header() != "bearer tok-1" {
		t.Errorf("auth = %+v", auth)
	}
	if want := now.Add(time.Hour); !auth.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", auth.ExpiresAt, want)
	}
	if m.NeedsRefresh() {
		t.Error("fresh token still reports needing refresh")
	}

	// Within the freshness floor of expiry the token must be replaced.
	now = now.Add(50 * time.Minute)
	if !m.NeedsRefresh() {
		t.Error("near-expiry token does not need refresh")
	}

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if m.Current().AccessToken != "tok-2" {
		t.Errorf("token after second refresh = %q", m.Current().AccessToken)
	}
}

func TestManagerRefreshLoginRejected(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	m := NewManager(client, "bot", "wrong", "cid", "csecret")

	_, err := m.Refresh(context.Background())
	if !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Refresh() error = %v, want ErrLoginFailed", err)
	}
	if m.Current() != nil {
		t.Error("rejected login left a cached token")
	}
}

func TestManagerRefreshEmptyToken(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":""}`))
	})
	m := NewManager(client, "bot", "hunter2", "cid", "csecret")

	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Refresh() error = %v, want ErrLoginFailed", err)
	}
}

func TestManagerInvalidate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	m := NewManager(client, "bot", "hunter2", "cid", "csecret")

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	m.Invalidate()
	if m.Current() != nil {
		t.Error("Invalidate() left a cached token")
	}
	if !m.NeedsRefresh() {
		t.Error("invalidated manager does not need refresh")
	}
	// Invalidating an empty manager is a no-op.
	m.Invalidate()
}

func TestManagerRevoke(t *testing.T) {
	var revokedToken string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access_token":
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		case "/api/v1/revoke_token":
			r.ParseForm()
			revokedToken = r.PostForm.Get("token")
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	m := NewManager(client, "bot", "hunter2", "cid", "csecret")

	// Revoking with no cached token does nothing.
	if err := m.Revoke(context.Background()); err != nil {
		t.Fatalf("Revoke() on empty manager error = %v", err)
	}

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := m.Revoke(context.Background()); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revokedToken != "tok" {
		t.Errorf("revoked token = %q", revokedToken)
	}
	if m.Current() != nil {
		t.Error("Revoke() left a cached token")
	}
}
