package notifier

import (
	"context"

	"github.com/potooio/ondeath/internal/types"
)

// Sender delivers events to one subscriber. Implementations deliver at most
// once: a failed delivery is logged and counted, never repeated.
type Sender interface {
	// Name returns the subscriber name, e.g. "statsplugin".
	Name() string

	// Send delivers one event to the subscriber.
	Send(ctx context.Context, ev types.Event) error

	// Start begins any background workers. Non-blocking.
	Start(ctx context.Context)
}
