package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

func registerModerationHandlers(r *Registry) {
	r.Register(Handler{
		Name:          "ban_user",
		RequiresDelay: true,
		Invoke:        banUser,
	})
	r.Register(Handler{
		Name:          "unban_user",
		RequiresDelay: true,
		Invoke:        unfriend("banned"),
	})
	r.Register(Handler{
		Name:          "approve_user",
		RequiresDelay: true,
		Invoke:        approveUser,
	})
	r.Register(Handler{
		Name:          "disapprove_user",
		RequiresDelay: true,
		Invoke:        unfriend("contributor"),
	})
	r.Register(Handler{
		Name:          "flair_link",
		RequiresDelay: true,
		Invoke:        flairLink,
	})
	r.Register(Handler{
		Name:          "subreddit_moderators",
		RequiresDelay: true,
		Invoke:        subredditModerators,
	})
}

func banUser(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddit, err := argString(args, "subreddit")
	if err != nil {
		return Status{}, nil, err
	}
	username, err := argString(args, "username")
	if err != nil {
		return Status{}, nil, err
	}
	message, err := argStringOpt(args, "message")
	if err != nil {
		return Status{}, nil, err
	}
	note, err := argStringOpt(args, "note")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.SubredditFriend(ctx, auth, subreddit, username, "banned", message, note)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}
	return StatusSuccess, nil, nil
}

func approveUser(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddit, err := argString(args, "subreddit")
	if err != nil {
		return Status{}, nil, err
	}
	username, err := argString(args, "username")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.SubredditFriend(ctx, auth, subreddit, username, "contributor", "", "")
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}
	return StatusSuccess, nil, nil
}

// unfriend builds the handlers that remove a user/subreddit relationship.
func unfriend(relationship string) InvokeFunc {
	return func(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
		subreddit, err := argString(args, "subreddit")
		if err != nil {
			return Status{}, nil, err
		}
		username, err := argString(args, "username")
		if err != nil {
			return Status{}, nil, err
		}
		resp, err := client.SubredditUnfriend(ctx, auth, subreddit, username, relationship)
		if err != nil {
			return Status{}, nil, err
		}
		if resp.StatusCode > 299 {
			return StatusCode(resp.StatusCode), nil, nil
		}
		return StatusSuccess, nil, nil
	}
}

func flairLink(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddit, err := argString(args, "subreddit")
	if err != nil {
		return Status{}, nil, err
	}
	linkFullname, err := argString(args, "link_fullname")
	if err != nil {
		return Status{}, nil, err
	}
	cssClass, err := argStringOpt(args, "css_class")
	if err != nil {
		return Status{}, nil, err
	}
	text, err := argStringOpt(args, "text")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.FlairLink(ctx, auth, subreddit, linkFullname, cssClass, text)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}
	return StatusSuccess, nil, nil
}

func subredditModerators(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddit, err := argString(args, "subreddit")
	if err != nil {
		return Status{}, nil, err
	}
	resp, err := client.SubredditModerators(ctx, auth, subreddit)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	var body struct {
		Data struct {
			Children []struct {
				Name           string   `json:"name"`
				ModPermissions []string `json:"mod_permissions"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Status{}, nil, fmt.Errorf("decode moderator listing: %w", err)
	}

	mods := make([]map[string]any, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		mods = append(mods, map[string]any{
			"username":        child.Name,
			"mod_permissions": child.ModPermissions,
		})
	}
	return StatusCode(resp.StatusCode), map[string]any{"mods": mods}, nil
}
