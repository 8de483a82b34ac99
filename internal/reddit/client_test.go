package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, fn http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(fn)
	t.Cleanup(srv.Close)
	return NewClient("broker-test/1.0", 5*time.Second, WithBaseURLs(srv.URL, srv.URL))
}

func TestClientSetsAuthorizedHeaders(t *testing.T) {
	var got http.Header
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	})
	auth := &Auth{AccessToken: "abc123", ExpiresAt: time.Now().Add(time.Hour)}

	if _, err := client.ShowUser(context.Background(), auth, "spez"); err != nil {
		t.Fatalf("ShowUser() error = %v", err)
	}
	if got.Get("User-Agent") != "broker-test/1.0" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Authorization") != "bearer abc123" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
}

func TestLoginUsesBasicAuthAndPasswordGrant(t *testing.T) {
	var user, pass string
	var okAuth bool
	var form map[string][]string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, okAuth = r.BasicAuth()
		r.ParseForm()
		form = r.PostForm
		if r.URL.Path != "/api/v1/access_token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"access_token":"tok"}`))
	})

	if _, err := client.Login(context.Background(), "bot", "hunter2", "cid", "csecret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !okAuth || user != "cid" || pass != "csecret" {
		t.Errorf("basic auth = %q/%q ok=%v", user, pass, okAuth)
	}
	if form["grant_type"][0] != "password" || form["username"][0] != "bot" || form["password"][0] != "hunter2" {
		t.Errorf("form = %v", form)
	}
}

func TestClientDoesNotTreatErrorStatusesAsErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream sad"))
	})
	auth := &Auth{AccessToken: "t", ExpiresAt: time.Now().Add(time.Hour)}

	resp, err := client.ShowUser(context.Background(), auth, "spez")
	if err != nil {
		t.Fatalf("ShowUser() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if string(resp.Body) != "upstream sad" {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestListingQuery(t *testing.T) {
	q := listingQuery(0, "", "")
	if len(q) != 0 {
		t.Errorf("zero values produced query %v", q)
	}
	q = listingQuery(25, "t1_a", "t1_b")
	if q.Get("limit") != "25" || q.Get("after") != "t1_a" || q.Get("before") != "t1_b" {
		t.Errorf("query = %v", q)
	}
}
