package subscription

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/types"
)

// Subscriber receives raw messages on a subject. natsbus.Client satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Request is the body of an inbound subscribe or unsubscribe message.
type Request struct {
	From string `json:"from"`
}

// Listen routes "<prefix>.subscribe" and "<prefix>.unsubscribe" messages to r.
func Listen(ctx context.Context, sub Subscriber, prefix string, r *Registry, logger *zap.Logger) error {
	logger = logger.Named("subscription-listener")
	routes := map[string]string{
		prefix + ".subscribe":   types.EventSubscribe,
		prefix + ".unsubscribe": types.EventUnsubscribe,
	}
	for subject, event := range routes {
		if err := sub.Subscribe(ctx, subject, handler(r, event, logger)); err != nil {
			return fmt.Errorf("listen on %s: %w", subject, err)
		}
		logger.Info("Listening for subscription requests", zap.String("subject", subject))
	}
	return nil
}

func handler(r *Registry, event string, logger *zap.Logger) func(context.Context, []byte) {
	return func(ctx context.Context, data []byte) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil || req.From == "" {
			logger.Warn("Ignoring malformed subscription request",
				zap.String("event", event), zap.ByteString("body", data), zap.Error(err))
			return
		}
		if err := r.HandleEvent(ctx, event, req.From); err != nil {
			logger.Error("Subscription request failed",
				zap.String("event", event), zap.String("from", req.From), zap.Error(err))
		}
	}
}
