package reddit

import (
	"context"
	"net/url"
)

// Login exchanges the bot account's password for a bearer token using the
// OAuth password grant. The caller inspects the status code; a non-2xx result
// means the login was rejected.
func (c *Client) Login(ctx context.Context, username, password, clientID, clientSecret string) (*Response, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	return c.postBasic(ctx, clientID, clientSecret, "/api/v1/access_token", form)
}

// RevokeToken invalidates the given bearer token on Reddit's side.
func (c *Client) RevokeToken(ctx context.Context, auth *Auth, clientID, clientSecret string) (*Response, error) {
	form := url.Values{}
	form.Set("token", auth.AccessToken)
	form.Set("token_type_hint", "access_token")
	return c.postBasic(ctx, clientID, clientSecret, "/api/v1/revoke_token", form)
}

// ShowUser fetches the account summary of a username.
func (c *Client) ShowUser(ctx context.Context, auth *Auth, username string) (*Response, error) {
	return c.get(ctx, auth, "/user/"+url.PathEscape(username)+"/about", nil)
}

// AboutRelationships fetches one of a subreddit's user listings
// ("moderators", "contributors" or "banned"), optionally filtered to a single
// username. An empty username fetches the whole listing.
func (c *Client) AboutRelationships(ctx context.Context, auth *Auth, subreddit, listing, username string) (*Response, error) {
	q := url.Values{}
	if username != "" {
		q.Set("user", username)
	}
	return c.get(ctx, auth, "/r/"+url.PathEscape(subreddit)+"/about/"+listing, q)
}

// SubredditComments fetches the newest comments of one or more subreddits
// (joined with "+"). limit 0 and empty after are omitted.
func (c *Client) SubredditComments(ctx context.Context, auth *Auth, subreddits string, limit int, after string) (*Response, error) {
	return c.get(ctx, auth, "/r/"+subreddits+"/comments", listingQuery(limit, after, ""))
}

// SubredditLinks fetches the newest links of one or more subreddits.
func (c *Client) SubredditLinks(ctx context.Context, auth *Auth, subreddits string, limit int, after string) (*Response, error) {
	return c.get(ctx, auth, "/r/"+subreddits+"/new", listingQuery(limit, after, ""))
}

// ModLog fetches the moderator action log of one or more subreddits.
func (c *Client) ModLog(ctx context.Context, auth *Auth, subreddits string, limit int, after, before string) (*Response, error) {
	return c.get(ctx, auth, "/r/"+subreddits+"/about/log", listingQuery(limit, after, before))
}

// CommentContext fetches a link's comment tree narrowed to a single comment.
// Both ids are bare id36s without their type prefixes.
func (c *Client) CommentContext(ctx context.Context, auth *Auth, linkID36, commentID36 string) (*Response, error) {
	q := url.Values{}
	q.Set("comment", commentID36)
	return c.get(ctx, auth, "/comments/"+url.PathEscape(linkID36), q)
}

// PostComment replies to the thing identified by parentFullname.
func (c *Client) PostComment(ctx context.Context, auth *Auth, parentFullname, text string) (*Response, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", parentFullname)
	form.Set("text", text)
	return c.postForm(ctx, auth, "/api/comment", form)
}

// Compose sends a private message.
func (c *Client) Compose(ctx context.Context, auth *Auth, to, subject, text string) (*Response, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", text)
	return c.postForm(ctx, auth, "/api/compose", form)
}

// Unread fetches the unread portion of the bot account's inbox.
func (c *Client) Unread(ctx context.Context, auth *Auth, limit int, after, before string) (*Response, error) {
	return c.get(ctx, auth, "/api/message/unread", listingQuery(limit, after, before))
}

// MarkAllRead marks the whole inbox as read.
func (c *Client) MarkAllRead(ctx context.Context, auth *Auth) (*Response, error) {
	return c.postForm(ctx, auth, "/api/read_all_messages", url.Values{})
}

// SubredditFriend forms a relationship ("banned" or "contributor") between a
// user and a subreddit. The ban fields are only sent for bans; empty values
// are omitted.
func (c *Client) SubredditFriend(ctx context.Context, auth *Auth, subreddit, username, relationship, banMessage, banNote string) (*Response, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("name", username)
	form.Set("type", relationship)
	if relationship == "banned" {
		if banMessage != "" {
			form.Set("ban_message", banMessage)
		}
		form.Set("ban_reason", "other")
		if banNote != "" {
			form.Set("note", banNote)
		}
	}
	return c.postForm(ctx, auth, "/r/"+url.PathEscape(subreddit)+"/api/friend", form)
}

// SubredditUnfriend removes a relationship between a user and a subreddit.
func (c *Client) SubredditUnfriend(ctx context.Context, auth *Auth, subreddit, username, relationship string) (*Response, error) {
	form := url.Values{}
	form.Set("name", username)
	form.Set("type", relationship)
	return c.postForm(ctx, auth, "/r/"+url.PathEscape(subreddit)+"/api/unfriend", form)
}

// FlairLink sets the flair of a link.
func (c *Client) FlairLink(ctx context.Context, auth *Auth, subreddit, linkFullname, cssClass, text string) (*Response, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("link", linkFullname)
	form.Set("css_class", cssClass)
	form.Set("text", text)
	return c.postForm(ctx, auth, "/r/"+url.PathEscape(subreddit)+"/api/flair", form)
}

// SubredditModerators fetches the full moderator listing of a subreddit.
func (c *Client) SubredditModerators(ctx context.Context, auth *Auth, subreddit string) (*Response, error) {
	return c.get(ctx, auth, "/r/"+url.PathEscape(subreddit)+"/about/moderators", nil)
}
