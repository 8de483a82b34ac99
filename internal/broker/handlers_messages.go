package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

// inboxPageSize matches Reddit's default unread page.
const inboxPageSize = 25

func registerMessageHandlers(r *Registry) {
	r.Register(Handler{
		Name:          "inbox",
		RequiresDelay: true,
		Invoke:        inbox,
	})
	r.Register(Handler{
		Name:          "compose",
		RequiresDelay: true,
		Invoke:        compose,
	})
	r.Register(Handler{
		Name:          "mark_all_read",
		RequiresDelay: true,
		Invoke:        markAllRead,
	})
}

func inbox(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	resp, err := client.Unread(ctx, auth, inboxPageSize, "", "")
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	var body struct {
		Data struct {
			Children []struct {
				Data struct {
					Name       string  `json:"name"`
					Subject    string  `json:"subject"`
					Body       string  `json:"body"`
					Author     string  `json:"author"`
					Subreddit  string  `json:"subreddit"`
					CreatedUTC float64 `json:"created_utc"`
					WasComment bool    `json:"was_comment"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Status{}, nil, fmt.Errorf("decode unread listing: %w", err)
	}

	messages := []map[string]any{}
	comments := []map[string]any{}
	for _, child := range body.Data.Children {
		item := child.Data
		if item.WasComment {
			comments = append(comments, map[string]any{
				"fullname":    item.Name,
				"body":        item.Body,
				"author":      item.Author,
				"subreddit":   item.Subreddit,
				"created_utc": item.CreatedUTC,
			})
		} else {
			messages = append(messages, map[string]any{
				"fullname":    item.Name,
				"subject":     item.Subject,
				"body":        item.Body,
				"author":      item.Author,
				"created_utc": item.CreatedUTC,
			})
		}
	}
	return StatusCode(resp.StatusCode), map[string]any{
		"messages": messages,
		"comments": comments,
	}, nil
}

func compose(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	to, err := argString(args, "to")
	if err != nil {
		return Status{}, nil, err
	}
	subject, err := argString(args, "subject")
	if err != nil {
		return Status{}, nil, err
	}
	text, err := argString(args, "body")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.Compose(ctx, auth, to, subject, text)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}
	return StatusSuccess, nil, nil
}

func markAllRead(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	resp, err := client.MarkAllRead(ctx, auth)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}
	return StatusSuccess, nil, nil
}
