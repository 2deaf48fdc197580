package notifier

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/potooio/ondeath/internal/types"
)

// DispatcherOptions configures the Dispatcher behavior.
type DispatcherOptions struct {
	RatePerSecond float64 // default 50
	Burst         int     // default 100
}

// DefaultDispatcherOptions returns sensible defaults.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		RatePerSecond: 50,
		Burst:         100,
	}
}

// subscriberLimiter tracks rate limits per subscriber.
type subscriberLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newSubscriberLimiter(perSecond float64, burst int) *subscriberLimiter {
	return &subscriberLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    max(1, burst),
	}
}

func (s *subscriberLimiter) get(name string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, exists := s.limiters[name]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[name] = limiter
	}
	return limiter
}

// Wait blocks until name may receive another event. It fails only when ctx
// ends first, or when its deadline is too close for the wait.
func (s *subscriberLimiter) Wait(ctx context.Context, name string) error {
	return s.get(name).Wait(ctx)
}

// Forget drops the limiter of a subscriber that went away.
func (s *subscriberLimiter) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, name)
}

// Dispatcher fans events out to subscribers.
type Dispatcher struct {
	logger  *zap.Logger
	opts    DispatcherOptions
	limiter *subscriberLimiter
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(logger *zap.Logger, opts DispatcherOptions) *Dispatcher {
	def := DefaultDispatcherOptions()
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = def.RatePerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	return &Dispatcher{
		logger:  logger.Named("dispatcher"),
		opts:    opts,
		limiter: newSubscriberLimiter(opts.RatePerSecond, opts.Burst),
	}
}

// Publish delivers each event, in order, to every subscriber. It never fails.
// A subscriber over its rate is waited for, delaying the cycle rather than
// losing events. Only cancellation of ctx skips an event, which is counted
// and logged.
func (d *Dispatcher) Publish(ctx context.Context, subscribers []Sender, events ...types.Event) {
	for _, ev := range events {
		for _, s := range subscribers {
			if err := d.limiter.Wait(ctx, s.Name()); err != nil {
				publishTotal.WithLabelValues(ev.Name(), "cancelled").Inc()
				d.logger.Warn("Event not delivered, publish cancelled while rate limited",
					zap.String("subscriber", s.Name()),
					zap.String("event", ev.Name()),
					zap.Error(err))
				continue
			}
			d.send(ctx, s, ev)
		}
	}
}

// Forget releases per-subscriber state after an unsubscribe.
func (d *Dispatcher) Forget(name string) {
	d.limiter.Forget(name)
}

func (d *Dispatcher) send(ctx context.Context, s Sender, ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			publishTotal.WithLabelValues(ev.Name(), "panic").Inc()
			d.logger.Error("Subscriber panicked",
				zap.String("subscriber", s.Name()),
				zap.String("event", ev.Name()),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := s.Send(ctx, ev); err != nil {
		publishTotal.WithLabelValues(ev.Name(), "error").Inc()
		d.logger.Warn("Failed to deliver event",
			zap.String("subscriber", s.Name()),
			zap.String("event", ev.Name()),
			zap.Error(err))
		return
	}
	publishTotal.WithLabelValues(ev.Name(), "sent").Inc()
}
