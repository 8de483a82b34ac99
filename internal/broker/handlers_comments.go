package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

func registerCommentHandlers(r *Registry) {
	r.Register(Handler{
		Name:          "lookup_comment",
		RequiresDelay: true,
		Invoke:        lookupComment,
	})
	r.Register(Handler{
		Name:          "post_comment",
		RequiresDelay: true,
		Invoke:        postComment,
	})
}

func lookupComment(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	linkFullname, err := argString(args, "link_fullname")
	if err != nil {
		return Status{}, nil, err
	}
	commentFullname, err := argString(args, "comment_fullname")
	if err != nil {
		return Status{}, nil, err
	}

	resp, err := client.CommentContext(ctx, auth,
		strings.TrimPrefix(linkFullname, "t3_"),
		strings.TrimPrefix(commentFullname, "t1_"))
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	// The endpoint answers with a two-listing array: the link itself, then
	// the comment subtree.
	var listings []struct {
		Data struct {
			Children []struct {
				Kind string `json:"kind"`
				Data struct {
					Name       string  `json:"name"`
					Body       string  `json:"body"`
					Author     string  `json:"author"`
					LinkID     string  `json:"link_id"`
					Subreddit  string  `json:"subreddit"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &listings); err != nil {
		return Status{}, nil, fmt.Errorf("decode comment context: %w", err)
	}
	if len(listings) < 2 {
		return Status{}, nil, fmt.Errorf("comment context returned %d listings, expected 2", len(listings))
	}

	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		comment := child.Data
		return StatusCode(resp.StatusCode), map[string]any{
			"fullname":      comment.Name,
			"body":          comment.Body,
			"author":        comment.Author,
			"link_fullname": comment.LinkID,
			"subreddit":     comment.Subreddit,
			"created_utc":   comment.CreatedUTC,
		}, nil
	}
	// The link exists but the requested comment does not.
	return StatusCode(404), nil, nil
}

func postComment(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	parentFullname, err := argString(args, "parent_fullname")
	if err != nil {
		return Status{}, nil, err
	}
	text, err := argString(args, "text")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.PostComment(ctx, auth, parentFullname, text)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}
	return StatusSuccess, nil, nil
}
