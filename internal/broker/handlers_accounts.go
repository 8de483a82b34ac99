package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

func registerAccountHandlers(r *Registry) {
	r.Register(Handler{
		Name:          "show_user",
		RequiresDelay: true,
		Invoke:        showUser,
	})
	r.Register(Handler{
		Name:          "user_is_moderator",
		RequiresDelay: true,
		Invoke:        userRelationship("moderators", "moderator"),
	})
	r.Register(Handler{
		Name:          "user_is_approved",
		RequiresDelay: true,
		Invoke:        userRelationship("contributors", "approved"),
	})
	r.Register(Handler{
		Name:          "user_is_banned",
		RequiresDelay: true,
		Invoke:        userRelationship("banned", "banned"),
	})
}

func showUser(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	username, err := argString(args, "username")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.ShowUser(ctx, auth, username)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	var body struct {
		Data struct {
			LinkKarma    int64   `json:"link_karma"`
			CommentKarma int64   `json:"comment_karma"`
			CreatedUTC   float64 `json:"created_utc"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Status{}, nil, fmt.Errorf("decode user about: %w", err)
	}
	return StatusCode(resp.StatusCode), map[string]any{
		"cumulative_karma":       body.Data.LinkKarma + body.Data.CommentKarma,
		"link_karma":             body.Data.LinkKarma,
		"comment_karma":          body.Data.CommentKarma,
		"created_at_utc_seconds": body.Data.CreatedUTC,
	}, nil
}

// userRelationship builds the user_is_* handlers. Reddit answers these with a
// user listing filtered to the requested name; the user holds the
// relationship iff the listing contains them (matched case-insensitively).
func userRelationship(listing, replyKey string) InvokeFunc {
	return func(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
		subreddit, err := argString(args, "subreddit")
		if err != nil {
			return Status{}, nil, err
		}
		username, err := argString(args, "username")
		if err != nil {
			return Status{}, nil, err
		}
		resp, err := client.AboutRelationships(ctx, auth, subreddit, listing, username)
		if err != nil {
			return Status{}, nil, err
		}
		if resp.StatusCode > 299 {
			return StatusCode(resp.StatusCode), nil, nil
		}

		var body struct {
			Data struct {
				Children []struct {
					Name string `json:"name"`
				} `json:"children"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return Status{}, nil, fmt.Errorf("decode %s listing: %w", listing, err)
		}
		found := false
		for _, child := range body.Data.Children {
			if strings.EqualFold(child.Name, username) {
				found = true
				break
			}
		}
		return StatusCode(resp.StatusCode), map[string]any{replyKey: found}, nil
	}
}
