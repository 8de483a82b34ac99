package broker

import (
	"context"

	"github.com/onnwee/reddit-broker/internal/reddit"
)

func registerPingHandlers(r *Registry) {
	// _ping answers without touching Reddit, so it costs no quota slot.
	r.Register(Handler{
		Name:          "_ping",
		RequiresDelay: false,
		Invoke: func(ctx context.Context, client *reddit.Client, auth *reddit.Auth, args map[string]any) (Status, any, error) {
			return StatusSuccess, nil, nil
		},
	})
}
