package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/onnwee/reddit-broker/internal/logger"
)

// Packet is one inbound request, parsed and validated.
type Packet struct {
	ResponseQueue     string
	VersionUTCSeconds float64
	Type              string
	UUID              string
	SentAt            float64
	Args              map[string]any
	Style             StyleTable // nil when the packet carries no style table
	IgnoreVersion     bool

	raw map[string]any // original body, kept for retry republishing
}

// VoidQueuePrefix marks response queues whose replies are suppressed.
const VoidQueuePrefix = "void"

// Void reports whether replies to this packet are suppressed.
func (p *Packet) Void() bool {
	return strings.HasPrefix(p.ResponseQueue, VoidQueuePrefix)
}

// RepublishBody re-encodes the original packet with ignore_version forced to
// the given value, for placing back onto the inbound queue.
func (p *Packet) RepublishBody(ignoreVersion bool) ([]byte, error) {
	body := make(map[string]any, len(p.raw)+1)
	for k, v := range p.raw {
		body[k] = v
	}
	body["ignore_version"] = ignoreVersion
	return json.Marshal(body)
}

var validOperations = map[string]bool{
	"copy":    true,
	"success": true,
	"failure": true,
	"retry":   true,
}

// ParsePacket decodes and validates an inbound message body. Validation is
// structural only; verb existence is the dispatch loop's concern. Rules are
// checked in order and the first violation wins.
func ParsePacket(body []byte) (*Packet, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}

	responseQueue, ok := raw["response_queue"].(string)
	if !ok || responseQueue == "" {
		return nil, fmt.Errorf("response_queue must be a non-empty string, got %T", raw["response_queue"])
	}
	version, ok := raw["version_utc_seconds"].(float64)
	if !ok {
		return nil, fmt.Errorf("version_utc_seconds must be numeric, got %T", raw["version_utc_seconds"])
	}
	typ, ok := raw["type"].(string)
	if !ok {
		return nil, fmt.Errorf("type must be a string, got %T", raw["type"])
	}
	uuid, ok := raw["uuid"].(string)
	if !ok {
		return nil, fmt.Errorf("uuid must be a string, got %T", raw["uuid"])
	}
	sentAt, ok := raw["sent_at"].(float64)
	if !ok {
		return nil, fmt.Errorf("sent_at must be numeric, got %T", raw["sent_at"])
	}
	var rawStyle map[string]any
	if v, present := raw["style"]; present {
		if rawStyle, ok = v.(map[string]any); !ok {
			return nil, fmt.Errorf("style must be an object, got %T", v)
		}
	}
	ignoreVersion := false
	if v, present := raw["ignore_version"]; present {
		if ignoreVersion, ok = v.(bool); !ok {
			return nil, fmt.Errorf("ignore_version must be a boolean, got %T", v)
		}
	}

	style, err := parseStyleTable(rawStyle)
	if err != nil {
		return nil, err
	}

	args, _ := raw["args"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	return &Packet{
		ResponseQueue:     responseQueue,
		VersionUTCSeconds: version,
		Type:              typ,
		UUID:              uuid,
		SentAt:            sentAt,
		Args:              args,
		Style:             style,
		IgnoreVersion:     ignoreVersion,
		raw:               raw,
	}, nil
}

func parseStyleTable(raw map[string]any) (StyleTable, error) {
	if raw == nil {
		return nil, nil
	}
	table := make(StyleTable, len(raw))
	for key, value := range raw {
		if !validStyleKey(key) {
			return nil, fmt.Errorf("style key %q is not a status class or a status in [200,599]", key)
		}
		entryMap, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("style entry for %q must be an object, got %T", key, value)
		}
		operation, ok := entryMap["operation"].(string)
		if !ok || !validOperations[operation] {
			return nil, fmt.Errorf("style entry for %q needs an operation in {copy, success, failure, retry}", key)
		}
		entry := StyleEntry{Operation: operation}
		if v, present := entryMap["log_level"]; present {
			level, ok := v.(string)
			if !ok || !validLogLevel(level) {
				return nil, fmt.Errorf("style entry for %q has unrecognized log_level %v", key, v)
			}
			entry.LogLevel = level
		}
		if v, present := entryMap["ignore_version"]; present && operation == "retry" {
			iv, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("style entry for %q: ignore_version must be a boolean, got %T", key, v)
			}
			entry.IgnoreVersion = &iv
		}
		table[key] = entry
	}
	return table, nil
}

func validStyleKey(key string) bool {
	switch key {
	case "2xx", "3xx", "4xx", "5xx":
		return true
	}
	n, err := strconv.Atoi(key)
	if err != nil || n < 200 || n > 599 {
		return false
	}
	// Only the canonical decimal encoding can ever match during resolution.
	return strconv.Itoa(n) == key
}

func validLogLevel(level string) bool {
	if strings.EqualFold(level, "NONE") {
		return true
	}
	_, ok := logger.ParseLevel(level)
	return ok
}
