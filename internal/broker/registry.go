package broker

import (
	"context"
	"fmt"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

// InvokeFunc executes one verb. It returns the status to style plus the
// canonical info payload; an error (or panic, recovered by the dispatch loop)
// maps to the failure sentinel with a null payload.
type InvokeFunc func(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error)

// Handler describes one registered verb.
type Handler struct {
	Name string
	// RequiresDelay marks verbs that consume a Reddit quota slot and are
	// therefore subject to the rate clock.
	RequiresDelay bool
	Invoke        InvokeFunc
}

// Registry maps verb names to handlers. It is populated once at startup and
// read-only afterwards.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry holding every built-in verb.
func NewRegistry() *Registry {
	r := &Registry{handlers: map[string]Handler{}}
	registerPingHandlers(r)
	registerAccountHandlers(r)
	registerListingHandlers(r)
	registerCommentHandlers(r)
	registerMessageHandlers(r)
	registerModerationHandlers(r)
	return r
}

// Register adds a handler; duplicate names are a programming error.
func (r *Registry) Register(h Handler) {
	if _, exists := r.handlers[h.Name]; exists {
		panic(fmt.Sprintf("duplicate handler registered for verb %q", h.Name))
	}
	r.handlers[h.Name] = h
}

// Lookup finds the handler for a verb name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Verbs returns the registered verb names; used for startup logging.
func (r *Registry) Verbs() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
