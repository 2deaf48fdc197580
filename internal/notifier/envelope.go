package notifier

import (
	"strings"
	"time"

	"github.com/potooio/ondeath/internal/types"
)

// SchemaVersion of the Envelope. Bump on breaking payload changes.
const SchemaVersion = "1"

// Envelope is the JSON document delivered to subscribers over every transport.
type Envelope struct {
	// Type is the event name, e.g. "ondeath:death".
	Type string `json:"type"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string `json:"schemaVersion"`
	// Timestamp is the RFC3339 time the event was published.
	Timestamp string `json:"timestamp"`
	// Subscriber is the name the event is addressed to.
	Subscriber string `json:"subscriber"`
	// Data is the event payload.
	Data types.Event `json:"data"`
}

// NewEnvelope wraps ev for subscriber.
func NewEnvelope(subscriber string, ev types.Event, now time.Time) Envelope {
	return Envelope{
		Type:          ev.Name(),
		SchemaVersion: SchemaVersion,
		Timestamp:     now.UTC().Format(time.RFC3339),
		Subscriber:    subscriber,
		Data:          ev,
	}
}

// EventSuffix returns the event name without its "ondeath:" namespace,
// e.g. "death". Used to build subjects and routes.
func EventSuffix(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// eventFilter reports whether an event name is wanted. An empty filter accepts all.
type eventFilter map[string]bool

func newEventFilter(names []string) eventFilter {
	if len(names) == 0 {
		return nil
	}
	f := make(eventFilter, len(names))
	for _, n := range names {
		f[n] = true
		f[EventSuffix(n)] = true
	}
	return f
}

func (f eventFilter) accepts(name string) bool {
	return f == nil || f[name]
}
