package subscription

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/notifier"
)

// Directory resolves plugin names to the Sender that reaches them.
type Directory interface {
	Lookup(name string) (notifier.Sender, bool)
}

// RouteFunc builds a Sender for a name the Directory has no entry for.
type RouteFunc func(name string) (notifier.Sender, error)

// StaticDirectory resolves configured senders and, optionally, routes any
// other name through a RouteFunc.
type StaticDirectory struct {
	logger *zap.Logger
	route  RouteFunc

	mu      sync.RWMutex
	senders map[string]notifier.Sender
	ctx     context.Context
}

// NewStaticDirectory creates a directory holding senders, keyed by Name.
func NewStaticDirectory(logger *zap.Logger, senders ...notifier.Sender) *StaticDirectory {
	d := &StaticDirectory{
		logger:  logger.Named("directory"),
		senders: make(map[string]notifier.Sender, len(senders)),
	}
	for _, s := range senders {
		d.senders[s.Name()] = s
	}
	return d
}

// WithRoute enables routing of unknown names. Routed senders are cached.
func (d *StaticDirectory) WithRoute(route RouteFunc) *StaticDirectory {
	d.route = route
	return d
}

// Start starts every configured sender and remembers ctx for routed ones. Non-blocking.
func (d *StaticDirectory) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	senders := make([]notifier.Sender, 0, len(d.senders))
	for _, s := range d.senders {
		senders = append(senders, s)
	}
	d.mu.Unlock()

	for _, s := range senders {
		s.Start(ctx)
	}
}

// Add registers or replaces a sender.
func (d *StaticDirectory) Add(s notifier.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[s.Name()] = s
}

// Remove forgets a sender. Existing subscriptions keep their sender.
func (d *StaticDirectory) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.senders, name)
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(name string) (notifier.Sender, bool) {
	if name == "" {
		return nil, false
	}
	d.mu.RLock()
	s, ok := d.senders[name]
	route, ctx := d.route, d.ctx
	d.mu.RUnlock()
	if ok || route == nil {
		return s, ok
	}

	s, err := route(name)
	if err != nil {
		d.logger.Warn("Cannot route subscriber", zap.String("subscriber", name), zap.Error(err))
		return nil, false
	}
	if ctx != nil {
		s.Start(ctx)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.senders[name]; ok {
		return existing, true
	}
	d.senders[name] = s
	return s, true
}

// Names returns the names of every known sender.
func (d *StaticDirectory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.senders))
	for n := range d.senders {
		names = append(names, n)
	}
	return names
}
