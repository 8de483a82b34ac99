package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

// handlerFixture points a reddit client at a stub server and records the
// requests handlers make.
type handlerFixture struct {
	client *reddit.Client
	auth   *reddit.Auth
	reqs   []*http.Request
	forms  []url.Values
}

func newHandlerFixture(t *testing.T, status int, body string) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		auth: &reddit.Auth{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.reqs = append(f.reqs, r)
		f.forms = append(f.forms, r.PostForm)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	f.client = reddit.NewClient("broker-test/1.0", 5*time.Second,
		reddit.WithBaseURLs(srv.URL, srv.URL))
	return f
}

func (f *handlerFixture) lastReq(t *testing.T) *http.Request {
	t.Helper()
	if len(f.reqs) == 0 {
		t.Fatal("no request reached the stub")
	}
	return f.reqs[len(f.reqs)-1]
}

func invoke(t *testing.T, f *handlerFixture, verb string, args map[string]any) (Status, any) {
	t.Helper()
	handler, ok := NewRegistry().Lookup(verb)
	if !ok {
		t.Fatalf("verb %q not registered", verb)
	}
	status, info, err := handler.Invoke(context.Background(), f.client, f.auth, args)
	if err != nil {
		t.Fatalf("%s returned error: %v", verb, err)
	}
	return status, info
}

func TestShowUser(t *testing.T) {
	f := newHandlerFixture(t, 200,
		`{"kind":"t2","data":{"name":"spez","link_karma":120,"comment_karma":80,"created_utc":1118030400}}`)

	status, info := invoke(t, f, "show_user", map[string]any{"username": "spez"})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	got := info.(map[string]any)
	if got["cumulative_karma"] != int64(200) {
		t.Errorf("cumulative_karma = %v (%T)", got["cumulative_karma"], got["cumulative_karma"])
	}
	if got["link_karma"] != int64(120) || got["comment_karma"] != int64(80) {
		t.Errorf("karma fields = %v", got)
	}
	if got["created_at_utc_seconds"] != float64(1118030400) {
		t.Errorf("created_at_utc_seconds = %v", got["created_at_utc_seconds"])
	}
	if path := f.lastReq(t).URL.Path; path != "/user/spez/about" {
		t.Errorf("path = %q", path)
	}
}

func TestShowUserPassesThroughErrorStatus(t *testing.T) {
	f := newHandlerFixture(t, 404, `{"message":"Not Found"}`)
	status, info := invoke(t, f, "show_user", map[string]any{"username": "ghost"})
	if status.Code() != 404 || info != nil {
		t.Errorf("status = %v, info = %v", status, info)
	}
}

func TestUserRelationshipVerbs(t *testing.T) {
	tests := []struct {
		verb     string
		listing  string
		replyKey string
	}{
		{"user_is_moderator", "moderators", "moderator"},
		{"user_is_approved", "contributors", "approved"},
		{"user_is_banned", "banned", "banned"},
	}
	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			// The listing echoes a differently-cased name; the match must be
			// case-insensitive.
			f := newHandlerFixture(t, 200,
				`{"kind":"UserList","data":{"children":[{"name":"SomeBody"}]}}`)

			status, info := invoke(t, f, tt.verb, map[string]any{
				"subreddit": "borrow", "username": "somebody",
			})
			if status.Code() != 200 {
				t.Fatalf("status = %v", status)
			}
			if got := info.(map[string]any)[tt.replyKey]; got != true {
				t.Errorf("%s = %v, want true", tt.replyKey, got)
			}

			req := f.lastReq(t)
			if want := "/r/borrow/about/" + tt.listing; req.URL.Path != want {
				t.Errorf("path = %q, want %q", req.URL.Path, want)
			}
			if got := req.URL.Query().Get("user"); got != "somebody" {
				t.Errorf("user query = %q", got)
			}
		})
	}
}

func TestUserRelationshipAbsent(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"kind":"UserList","data":{"children":[]}}`)
	_, info := invoke(t, f, "user_is_banned", map[string]any{
		"subreddit": "borrow", "username": "somebody",
	})
	if got := info.(map[string]any)["banned"]; got != false {
		t.Errorf("banned = %v, want false", got)
	}
}

func listingChild(name string, created float64, extra string) string {
	if extra != "" {
		extra = "," + extra
	}
	return fmt.Sprintf(`{"kind":"t1","data":{"name":%q,"body":"b","author":"a","link_id":"t3_x","subreddit":"s","created_utc":%g%s}}`, name, created, extra)
}

func TestSubredditComments(t *testing.T) {
	// Out of order on the wire; the reply is newest first and truncated.
	f := newHandlerFixture(t, 200, `{"data":{"after":"t1_c","children":[`+
		listingChild("t1_old", 100, "")+","+
		listingChild("t1_new", 300, "")+","+
		listingChild("t1_mid", 200, "")+`]}}`)

	status, info := invoke(t, f, "subreddit_comments", map[string]any{
		"subreddits": []any{"borrow", "lending"},
		"limit":      2.0,
	})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	got := info.(map[string]any)
	comments := got["comments"].([]map[string]any)
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0]["fullname"] != "t1_new" || comments[1]["fullname"] != "t1_mid" {
		t.Errorf("order = %v, %v", comments[0]["fullname"], comments[1]["fullname"])
	}
	if got["after"] != "t1_c" {
		t.Errorf("after = %v", got["after"])
	}

	req := f.lastReq(t)
	if req.URL.Path != "/r/borrow+lending/comments" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if req.URL.Query().Get("limit") != "2" {
		t.Errorf("limit query = %q", req.URL.Query().Get("limit"))
	}
}

func TestListingLimitBelowOneIs400(t *testing.T) {
	for _, verb := range []string{"subreddit_comments", "subreddit_links", "modlog"} {
		t.Run(verb, func(t *testing.T) {
			f := newHandlerFixture(t, 200, `{}`)
			status, info := invoke(t, f, verb, map[string]any{
				"subreddits": "borrow", "limit": 0.0,
			})
			if status.Code() != 400 || info != nil {
				t.Errorf("status = %v, info = %v", status, info)
			}
			if len(f.reqs) != 0 {
				t.Error("bad limit still reached the network")
			}
		})
	}
}

func TestSubredditLegacyArgKey(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"data":{"after":null,"children":[]}}`)
	status, _ := invoke(t, f, "subreddit_comments", map[string]any{
		"subreddit": []any{"borrow"},
	})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	if f.lastReq(t).URL.Path != "/r/borrow/comments" {
		t.Errorf("path = %q", f.lastReq(t).URL.Path)
	}
}

func linkChild(name string, created float64, isSelf bool, extra string) string {
	if extra != "" {
		extra = "," + extra
	}
	return fmt.Sprintf(`{"kind":"t3","data":{"name":%q,"title":"t","author":"a","subreddit":"s","created_utc":%g,"is_self":%v,"selftext":"st","url":"https://x"%s}}`,
		name, created, isSelf, extra)
}

func TestSubredditLinks(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"data":{"after":"","children":[`+
		linkChild("t3_self_new", 400, true, "")+","+
		linkChild("t3_url_new", 300, false, "")+","+
		linkChild("t3_removed", 250, false, `"removed":true`)+","+
		linkChild("t3_banned", 240, true, `"banned_at_utc":230`)+","+
		linkChild("t3_self_old", 200, true, "")+","+
		linkChild("t3_url_old", 100, false, "")+`]}}`)

	status, info := invoke(t, f, "subreddit_links", map[string]any{
		"subreddits": "borrow",
		"limit":      3.0,
	})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	got := info.(map[string]any)
	self := got["self"].([]map[string]any)
	urls := got["url"].([]map[string]any)

	// Removed and banned links are dropped before the limit applies; the
	// merged limit of 3 evicts the oldest survivor (t3_url_old).
	if len(self) != 2 || self[0]["fullname"] != "t3_self_new" || self[1]["fullname"] != "t3_self_old" {
		t.Errorf("self split = %v", self)
	}
	if len(urls) != 1 || urls[0]["fullname"] != "t3_url_new" {
		t.Errorf("url split = %v", urls)
	}
	if self[0]["body"] != "st" {
		t.Errorf("self link missing body: %v", self[0])
	}
	if _, ok := urls[0]["url"]; !ok {
		t.Errorf("url link missing url: %v", urls[0])
	}
	if got["after"] != nil {
		t.Errorf("after = %v, want nil for empty cursor", got["after"])
	}
	if f.lastReq(t).URL.Path != "/r/borrow/new" {
		t.Errorf("path = %q", f.lastReq(t).URL.Path)
	}
}

func TestModLog(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"data":{"after":"m2","children":[
		{"data":{"target_fullname":"t3_x","target_author":"alice","mod":"m","action":"removelink","details":"spam","subreddit":"borrow","created_utc":100}},
		{"data":{"target_fullname":null,"target_author":null,"mod":"m","action":"editsettings","details":null,"subreddit":"borrow","created_utc":200}}
	]}}`)

	status, info := invoke(t, f, "modlog", map[string]any{"subreddits": "borrow"})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	actions := info.(map[string]any)["actions"].([]map[string]any)
	if len(actions) != 2 {
		t.Fatalf("got %d actions", len(actions))
	}
	// Newest first; null targets survive as nil pointers.
	if actions[0]["action"] != "editsettings" {
		t.Errorf("order wrong: %v", actions[0])
	}
	if tf := actions[0]["target_fullname"].(*string); tf != nil {
		t.Errorf("target_fullname = %v, want nil", *tf)
	}
	if tf := actions[1]["target_fullname"].(*string); tf == nil || *tf != "t3_x" {
		t.Errorf("target_fullname = %v", tf)
	}
	if f.lastReq(t).URL.Path != "/r/borrow/about/log" {
		t.Errorf("path = %q", f.lastReq(t).URL.Path)
	}
}

func TestLookupComment(t *testing.T) {
	f := newHandlerFixture(t, 200, `[
		{"data":{"children":[{"kind":"t3","data":{"name":"t3_abc"}}]}},
		{"data":{"children":[
			{"kind":"more","data":{}},
			{"kind":"t1","data":{"name":"t1_def","body":"hello","author":"alice","link_id":"t3_abc","subreddit":"borrow","created_utc":100}}
		]}}
	]`)

	status, info := invoke(t, f, "lookup_comment", map[string]any{
		"link_fullname": "t3_abc", "comment_fullname": "t1_def",
	})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	got := info.(map[string]any)
	if got["fullname"] != "t1_def" || got["body"] != "hello" || got["link_fullname"] != "t3_abc" {
		t.Errorf("info = %v", got)
	}

	req := f.lastReq(t)
	if req.URL.Path != "/comments/abc" {
		t.Errorf("path = %q, want fullname prefixes trimmed", req.URL.Path)
	}
	if req.URL.Query().Get("comment") != "def" {
		t.Errorf("comment query = %q", req.URL.Query().Get("comment"))
	}
}

func TestLookupCommentMissingIs404(t *testing.T) {
	// The link exists but the subtree holds no t1 child.
	f := newHandlerFixture(t, 200, `[
		{"data":{"children":[{"kind":"t3","data":{"name":"t3_abc"}}]}},
		{"data":{"children":[]}}
	]`)
	status, info := invoke(t, f, "lookup_comment", map[string]any{
		"link_fullname": "t3_abc", "comment_fullname": "t1_gone",
	})
	if status.Code() != 404 || info != nil {
		t.Errorf("status = %v, info = %v", status, info)
	}
}

func TestPostComment(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"json":{"errors":[]}}`)
	status, info := invoke(t, f, "post_comment", map[string]any{
		"parent_fullname": "t1_def", "text": "thanks!",
	})
	if !status.IsSuccess() || info != nil {
		t.Errorf("status = %v, info = %v", status, info)
	}

	form := f.forms[0]
	if form.Get("thing_id") != "t1_def" || form.Get("text") != "thanks!" {
		t.Errorf("form = %v", form)
	}
	if f.lastReq(t).URL.Path != "/api/comment" {
		t.Errorf("path = %q", f.lastReq(t).URL.Path)
	}
}

func TestInboxSplitsByWasComment(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"data":{"children":[
		{"data":{"name":"t4_m1","subject":"hi","body":"pm body","author":"alice","created_utc":100,"was_comment":false}},
		{"data":{"name":"t1_c1","subject":"comment reply","body":"cc","author":"bob","subreddit":"borrow","created_utc":200,"was_comment":true}}
	]}}`)

	status, info := invoke(t, f, "inbox", nil)
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	got := info.(map[string]any)
	messages := got["messages"].([]map[string]any)
	comments := got["comments"].([]map[string]any)
	if len(messages) != 1 || messages[0]["subject"] != "hi" {
		t.Errorf("messages = %v", messages)
	}
	if len(comments) != 1 || comments[0]["subreddit"] != "borrow" {
		t.Errorf("comments = %v", comments)
	}

	req := f.lastReq(t)
	if req.URL.Path != "/api/message/unread" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if req.URL.Query().Get("limit") != "25" {
		t.Errorf("limit query = %q", req.URL.Query().Get("limit"))
	}
}

func TestBanUserForm(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"json":{"errors":[]}}`)
	status, _ := invoke(t, f, "ban_user", map[string]any{
		"subreddit": "borrow", "username": "mallory",
		"message": "rule 1", "note": "repeat offender",
	})
	if !status.IsSuccess() {
		t.Fatalf("status = %v", status)
	}

	form := f.forms[0]
	if form.Get("name") != "mallory" || form.Get("type") != "banned" {
		t.Errorf("form = %v", form)
	}
	if form.Get("ban_message") != "rule 1" || form.Get("ban_reason") != "other" || form.Get("note") != "repeat offender" {
		t.Errorf("ban fields = %v", form)
	}
	if f.lastReq(t).URL.Path != "/r/borrow/api/friend" {
		t.Errorf("path = %q", f.lastReq(t).URL.Path)
	}
}

func TestModerationRelationshipForms(t *testing.T) {
	tests := []struct {
		verb     string
		wantPath string
		wantType string
	}{
		{"approve_user", "/r/borrow/api/friend", "contributor"},
		{"unban_user", "/r/borrow/api/unfriend", "banned"},
		{"disapprove_user", "/r/borrow/api/unfriend", "contributor"},
	}
	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			f := newHandlerFixture(t, 200, `{}`)
			status, _ := invoke(t, f, tt.verb, map[string]any{
				"subreddit": "borrow", "username": "alice",
			})
			if !status.IsSuccess() {
				t.Fatalf("status = %v", status)
			}
			if f.lastReq(t).URL.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", f.lastReq(t).URL.Path, tt.wantPath)
			}
			if got := f.forms[0].Get("type"); got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestFlairLink(t *testing.T) {
	f := newHandlerFixture(t, 200, `{}`)
	status, _ := invoke(t, f, "flair_link", map[string]any{
		"subreddit": "borrow", "link_fullname": "t3_abc",
		"css_class": "unpaid", "text": "UNPAID",
	})
	if !status.IsSuccess() {
		t.Fatalf("status = %v", status)
	}
	form := f.forms[0]
	if form.Get("link") != "t3_abc" || form.Get("css_class") != "unpaid" || form.Get("text") != "UNPAID" {
		t.Errorf("form = %v", form)
	}
	if f.lastReq(t).URL.Path != "/r/borrow/api/flair" {
		t.Errorf("path = %q", f.lastReq(t).URL.Path)
	}
}

func TestSubredditModerators(t *testing.T) {
	f := newHandlerFixture(t, 200, `{"kind":"UserList","data":{"children":[
		{"name":"alice","mod_permissions":["all"]},
		{"name":"bob","mod_permissions":["posts","flair"]}
	]}}`)

	status, info := invoke(t, f, "subreddit_moderators", map[string]any{"subreddit": "borrow"})
	if status.Code() != 200 {
		t.Fatalf("status = %v", status)
	}
	mods := info.(map[string]any)["mods"].([]map[string]any)
	if len(mods) != 2 || mods[0]["username"] != "alice" {
		t.Errorf("mods = %v", mods)
	}
	perms := mods[1]["mod_permissions"].([]string)
	if len(perms) != 2 || perms[0] != "posts" {
		t.Errorf("permissions = %v", perms)
	}
}

func TestArgSubreddits(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		want    []string
		wantErr bool
	}{
		{name: "single string", args: map[string]any{"subreddits": "borrow"}, want: []string{"borrow"}},
		{name: "array", args: map[string]any{"subreddits": []any{"borrow", "lending"}}, want: []string{"borrow", "lending"}},
		{name: "joined members flattened", args: map[string]any{"subreddits": []any{"a+b", "c"}}, want: []string{"a", "b", "c"}},
		{name: "legacy key", args: map[string]any{"subreddit": "borrow"}, want: []string{"borrow"}},
		{name: "missing", args: map[string]any{}, wantErr: true},
		{name: "wrong type", args: map[string]any{"subreddits": 7.0}, wantErr: true},
		{name: "non-string member", args: map[string]any{"subreddits": []any{"a", 2.0}}, wantErr: true},
		{name: "empty after flatten", args: map[string]any{"subreddits": "+"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := argSubreddits(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("argSubreddits() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("argSubreddits() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("argSubreddits() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("argSubreddits() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestRegistryVerbs(t *testing.T) {
	r := NewRegistry()
	wanted := []string{
		"_ping", "show_user", "user_is_moderator", "user_is_approved", "user_is_banned",
		"subreddit_comments", "subreddit_links", "modlog",
		"lookup_comment", "post_comment",
		"inbox", "compose", "mark_all_read",
		"ban_user", "unban_user", "approve_user", "disapprove_user",
		"flair_link", "subreddit_moderators",
	}
	for _, verb := range wanted {
		if _, ok := r.Lookup(verb); !ok {
			t.Errorf("verb %q not registered", verb)
		}
	}
	if len(r.Verbs()) != len(wanted) {
		t.Errorf("registry holds %d verbs, want %d", len(r.Verbs()), len(wanted))
	}
}
