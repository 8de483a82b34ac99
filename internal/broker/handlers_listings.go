package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

func registerListingHandlers(r *Registry) {
	r.Register(Handler{
		Name:          "subreddit_comments",
		RequiresDelay: true,
		Invoke:        subredditComments,
	})
	r.Register(Handler{
		Name:          "subreddit_links",
		RequiresDelay: true,
		Invoke:        subredditLinks,
	})
	r.Register(Handler{
		Name:          "modlog",
		RequiresDelay: true,
		Invoke:        modLog,
	})
}

// listingArgs is the shared subreddits/limit/after argument triple of the
// listing verbs. A present limit below 1 short-circuits to a 400.
func listingArgs(args map[string]any) (subreddits string, limit int, after string, bad bool, err error) {
	subs, err := argSubreddits(args)
	if err != nil {
		return "", 0, "", false, err
	}
	limit, err = argLimit(args)
	if err != nil {
		return "", 0, "", false, err
	}
	if _, present := args["limit"]; present && limit < 1 {
		return "", 0, "", true, nil
	}
	after, err = argStringOpt(args, "after")
	if err != nil {
		return "", 0, "", false, err
	}
	return strings.Join(subs, "+"), limit, after, false, nil
}

type commentChild struct {
	Data struct {
		Name       string  `json:"name"`
		Body       string  `json:"body"`
		Author     string  `json:"author"`
		LinkID     string  `json:"link_id"`
		Subreddit  string  `json:"subreddit"`
		CreatedUTC float64 `json:"created_utc"`
	} `json:"data"`
}

func commentRecord(child commentChild) map[string]any {
	return map[string]any{
		"fullname":      child.Data.Name,
		"body":          child.Data.Body,
		"author":        child.Data.Author,
		"link_fullname": child.Data.LinkID,
		"subreddit":     child.Data.Subreddit,
		"created_utc":   child.Data.CreatedUTC,
	}
}

func subredditComments(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddits, limit, after, bad, err := listingArgs(args)
	if err != nil {
		return Status{}, nil, err
	}
	if bad {
		return StatusCode(400), nil, nil
	}
	resp, err := client.SubredditComments(ctx, auth, subreddits, limit, after)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	var body struct {
		Data struct {
			After    string         `json:"after"`
			Children []commentChild `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Status{}, nil, fmt.Errorf("decode comment listing: %w", err)
	}

	comments := make([]map[string]any, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		comments = append(comments, commentRecord(child))
	}
	sortByCreatedDesc(comments)
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return StatusCode(resp.StatusCode), map[string]any{
		"comments": comments,
		"after":    afterOrNil(body.Data.After),
	}, nil
}

func subredditLinks(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddits, limit, after, bad, err := listingArgs(args)
	if err != nil {
		return Status{}, nil, err
	}
	if bad {
		return StatusCode(400), nil, nil
	}
	resp, err := client.SubredditLinks(ctx, auth, subreddits, limit, after)
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	var body struct {
		Data struct {
			After    string `json:"after"`
			Children []struct {
				Data struct {
					Name        string   `json:"name"`
					Title       string   `json:"title"`
					Author      string   `json:"author"`
					Subreddit   string   `json:"subreddit"`
					CreatedUTC  float64  `json:"created_utc"`
					IsSelf      bool     `json:"is_self"`
					SelfText    string   `json:"selftext"`
					URL         string   `json:"url"`
					BannedAtUTC *float64 `json:"banned_at_utc"`
					Removed     bool     `json:"removed"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Status{}, nil, fmt.Errorf("decode link listing: %w", err)
	}

	selfLinks := []map[string]any{}
	urlLinks := []map[string]any{}
	for _, child := range body.Data.Children {
		link := child.Data
		if link.BannedAtUTC != nil || link.Removed {
			continue
		}
		record := map[string]any{
			"fullname":    link.Name,
			"title":       link.Title,
			"author":      link.Author,
			"subreddit":   link.Subreddit,
			"created_utc": link.CreatedUTC,
		}
		if link.IsSelf {
			record["body"] = link.SelfText
			selfLinks = append(selfLinks, record)
		} else {
			record["url"] = link.URL
			urlLinks = append(urlLinks, record)
		}
	}
	sortByCreatedDesc(selfLinks)
	sortByCreatedDesc(urlLinks)

	// The limit applies to the merged population: keep dropping the oldest
	// tail of whichever split holds it.
	if limit > 0 {
		for len(selfLinks)+len(urlLinks) > limit {
			if len(selfLinks) > 0 && (len(urlLinks) == 0 || createdOf(selfLinks[len(selfLinks)-1]) < createdOf(urlLinks[len(urlLinks)-1])) {
				selfLinks = selfLinks[:len(selfLinks)-1]
			} else {
				urlLinks = urlLinks[:len(urlLinks)-1]
			}
		}
	}

	return StatusCode(resp.StatusCode), map[string]any{
		"self":  selfLinks,
		"url":   urlLinks,
		"after": afterOrNil(body.Data.After),
	}, nil
}

func modLog(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
	subreddits, limit, after, bad, err := listingArgs(args)
	if err != nil {
		return Status{}, nil, err
	}
	if bad {
		return StatusCode(400), nil, nil
	}
	resp, err := client.ModLog(ctx, auth, subreddits, limit, after, "")
	if err != nil {
		return Status{}, nil, err
	}
	if resp.StatusCode > 299 {
		return StatusCode(resp.StatusCode), nil, nil
	}

	var body struct {
		Data struct {
			After    string `json:"after"`
			Children []struct {
				Data struct {
					TargetFullname *string `json:"target_fullname"`
					TargetAuthor   *string `json:"target_author"`
					Mod            string  `json:"mod"`
					Action         string  `json:"action"`
					Details        *string `json:"details"`
					Subreddit      string  `json:"subreddit"`
					CreatedUTC     float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Status{}, nil, fmt.Errorf("decode modlog listing: %w", err)
	}

	actions := make([]map[string]any, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		action := child.Data
		actions = append(actions, map[string]any{
			"target_fullname": action.TargetFullname,
			"target_author":   action.TargetAuthor,
			"mod":             action.Mod,
			"action":          action.Action,
			"details":         action.Details,
			"subreddit":       action.Subreddit,
			"created_utc":     action.CreatedUTC,
		})
	}
	sortByCreatedDesc(actions)
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}
	return StatusCode(resp.StatusCode), map[string]any{
		"actions": actions,
		"after":   afterOrNil(body.Data.After),
	}, nil
}

func sortByCreatedDesc(records []map[string]any) {
	sort.SliceStable(records, func(i, j int) bool {
		return createdOf(records[i]) > createdOf(records[j])
	})
}

func createdOf(record map[string]any) float64 {
	created, _ := record["created_utc"].(float64)
	return created
}

// afterOrNil maps Reddit's empty cursor to an explicit null in replies.
func afterOrNil(after string) any {
	if after == "" {
		return nil
	}
	return after
}
