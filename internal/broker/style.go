package broker

import "strconv"

// StyleEntry is one client-supplied decision for a status key.
type StyleEntry struct {
	Operation     string
	LogLevel      string // empty when absent
	IgnoreVersion *bool  // retry entries only, nil when absent
}

// StyleTable maps status keys (exact statuses or class wildcards like "4xx")
// to style entries.
type StyleTable map[string]StyleEntry

// ResolvedStyle is the effective decision for one response: what reply to
// publish, how loudly to log, and whether a retry carries ignore_version.
type ResolvedStyle struct {
	Operation     string
	LogLevel      string
	IgnoreVersion bool
}

// defaultStyle is the system default decision table.
var defaultStyle = StyleTable{
	"2xx": {Operation: "copy", LogLevel: "TRACE"},
	"4xx": {Operation: "failure", LogLevel: "WARN"},
	"5xx": {Operation: "retry", LogLevel: "WARN"},
}

// hardFallback applies when neither the client table nor the defaults match.
var hardFallback = ResolvedStyle{Operation: "retry", LogLevel: "WARN"}

// ResolveStyle produces the effective style for a handler status. The
// sentinels bypass both tables. Otherwise the client's table is consulted
// first (exact status key, then class wildcard); fields missing from the
// chosen entry are filled from the system default resolved against the same
// status.
func ResolveStyle(style StyleTable, status Status) ResolvedStyle {
	if status.IsSuccess() {
		return ResolvedStyle{Operation: "success", LogLevel: "TRACE"}
	}
	if status.IsFailure() {
		return ResolvedStyle{Operation: "failure", LogLevel: "TRACE"}
	}

	code := status.Code()
	clientEntry, clientOK := lookupStyle(style, code)
	defEntry, defOK := lookupStyle(defaultStyle, code)

	switch {
	case !clientOK && !defOK:
		return hardFallback
	case !clientOK:
		clientEntry = defEntry
	}

	resolved := ResolvedStyle{
		Operation: clientEntry.Operation,
		LogLevel:  clientEntry.LogLevel,
	}
	if resolved.LogLevel == "" {
		if defOK && defEntry.LogLevel != "" {
			resolved.LogLevel = defEntry.LogLevel
		} else {
			resolved.LogLevel = hardFallback.LogLevel
		}
	}
	if resolved.Operation == "retry" && clientEntry.IgnoreVersion != nil {
		resolved.IgnoreVersion = *clientEntry.IgnoreVersion
	}
	return resolved
}

// lookupStyle resolves a numeric status within one table: exact key first,
// then the class wildcard.
func lookupStyle(table StyleTable, code int) (StyleEntry, bool) {
	if table == nil {
		return StyleEntry{}, false
	}
	key := strconv.Itoa(code)
	if entry, ok := table[key]; ok {
		return entry, true
	}
	if entry, ok := table[key[:1]+"xx"]; ok {
		return entry, true
	}
	return StyleEntry{}, false
}
