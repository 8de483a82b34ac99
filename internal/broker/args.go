package broker

import (
	"fmt"
	"strings"
)

// Argument extraction for handler payloads. JSON numbers arrive as float64.

func argString(args map[string]any, key string) (string, error) {
	v, present := args[key]
	if !present {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

func argStringOpt(args map[string]any, key string) (string, error) {
	v, present := args[key]
	if !present || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

// argLimit extracts the optional "limit" argument. Zero means absent.
func argLimit(args map[string]any) (int, error) {
	v, present := args["limit"]
	if !present || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("argument \"limit\" must be numeric, got %T", v)
	}
	return int(f), nil
}

// argSubreddits accepts either the "subreddits" or the legacy "subreddit"
// key, holding a string or an array of strings. Members may themselves be
// "+"-joined; the result is the flattened list of individual names.
func argSubreddits(args map[string]any) ([]string, error) {
	v, present := args["subreddits"]
	if !present {
		v, present = args["subreddit"]
	}
	if !present {
		return nil, fmt.Errorf("missing argument \"subreddits\"")
	}

	var members []string
	switch t := v.(type) {
	case string:
		members = []string{t}
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("subreddit names must be strings, got %T", item)
			}
			members = append(members, s)
		}
	default:
		return nil, fmt.Errorf("argument \"subreddits\" must be a string or an array of strings, got %T", v)
	}

	var subs []string
	for _, member := range members {
		for _, sub := range strings.Split(member, "+") {
			if sub != "" {
				subs = append(subs, sub)
			}
		}
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("argument \"subreddits\" must name at least one subreddit")
	}
	return subs, nil
}
