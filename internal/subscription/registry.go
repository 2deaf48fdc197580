package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/notifier"
	"github.com/potooio/ondeath/internal/types"
)

// ErrUnresolvable is returned when a subscriber name cannot be reached.
var ErrUnresolvable = errors.New("subscriber is not enabled")

// Registry holds the ordered list of subscribers and persists their names.
type Registry struct {
	logger     *zap.Logger
	dir        Directory
	store      Store
	dispatcher *notifier.Dispatcher

	// opMu serializes mutation and persistence so saves land in order.
	opMu sync.Mutex

	mu          sync.RWMutex
	subscribers []notifier.Sender
}

// NewRegistry creates an empty Registry. Call Init to restore persisted names.
func NewRegistry(dir Directory, store Store, dispatcher *notifier.Dispatcher, logger *zap.Logger) *Registry {
	return &Registry{
		logger:     logger.Named("subscriptions"),
		dir:        dir,
		store:      store,
		dispatcher: dispatcher,
	}
}

// Init loads the persisted names and subscribes each in order.
func (r *Registry) Init(ctx context.Context) error {
	names, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	r.logger.Info("Restoring subscribers", zap.Strings("subscribers", names))
	for _, name := range names {
		if err := r.Subscribe(ctx, name); err != nil && !errors.Is(err, ErrUnresolvable) {
			return err
		}
	}
	return nil
}

// Subscribe adds name if it resolves and is not yet subscribed, then persists
// the list. An unresolvable name leaves the list unchanged and returns
// ErrUnresolvable.
func (r *Registry) Subscribe(ctx context.Context, name string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	var result error
	if !r.has(name) {
		s, ok := r.dir.Lookup(name)
		if ok {
			r.mu.Lock()
			r.subscribers = append(r.subscribers, s)
			r.mu.Unlock()
			r.logger.Info("Subscriber added", zap.String("subscriber", name))
		} else {
			r.logger.Warn("Subscriber is not enabled, removing subscription", zap.String("subscriber", name))
			result = fmt.Errorf("%q: %w", name, ErrUnresolvable)
		}
	}

	if err := r.persist(ctx); err != nil {
		return err
	}
	return result
}

// Unsubscribe removes name, if present, and persists the list.
func (r *Registry) Unsubscribe(ctx context.Context, name string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	before := len(r.subscribers)
	r.subscribers = slices.DeleteFunc(r.subscribers, func(s notifier.Sender) bool { return s.Name() == name })
	removed := before != len(r.subscribers)
	r.mu.Unlock()

	if removed {
		r.dispatcher.Forget(name)
		r.logger.Info("Subscriber removed", zap.String("subscriber", name))
	}
	return r.persist(ctx)
}

// HandleEvent dispatches an inbound plugin event sent by from. Unknown events
// are ignored.
func (r *Registry) HandleEvent(ctx context.Context, event, from string) error {
	var err error
	switch event {
	case types.EventSubscribe:
		err = r.Subscribe(ctx, from)
	case types.EventUnsubscribe:
		err = r.Unsubscribe(ctx, from)
	default:
		return nil
	}
	if errors.Is(err, ErrUnresolvable) {
		return nil
	}
	return err
}

// Publish delivers events to every current subscriber.
func (r *Registry) Publish(ctx context.Context, events ...types.Event) {
	r.dispatcher.Publish(ctx, r.Subscribers(), events...)
}

// Subscribers returns the current subscribers in registration order.
func (r *Registry) Subscribers() []notifier.Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.subscribers)
}

// Names returns the subscribed names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.subscribers))
	for i, s := range r.subscribers {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

func (r *Registry) has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.subscribers, func(s notifier.Sender) bool { return s.Name() == name })
}

func (r *Registry) persist(ctx context.Context) error {
	names := r.Names()
	if err := r.store.Save(ctx, names); err != nil {
		r.logger.Error("Failed to persist subscribers", zap.Strings("subscribers", names), zap.Error(err))
		return fmt.Errorf("persist subscribers: %w", err)
	}
	return nil
}
