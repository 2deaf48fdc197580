package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/console"
	"github.com/potooio/ondeath/internal/roster"
	"github.com/potooio/ondeath/internal/types"
)

const (
	// DefaultPollInterval is used when poll-rate is unset.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultRetention is how long an unseen pawn stays cached.
	DefaultRetention = 60 * time.Second

	// DefaultJanitorInterval is how often stale pawns are evicted.
	DefaultJanitorInterval = 60 * time.Second

	// DefaultKillColumn is the leaderboard position of the kill count.
	DefaultKillColumn = 1
)

// Subscribers is the audience of derived events.
type Subscribers interface {
	// Len returns the number of registered subscribers.
	Len() int

	// Publish delivers events, in order, to every registered subscriber.
	Publish(ctx context.Context, events ...types.Event)
}

// Options configures the Correlator.
type Options struct {
	PollInterval    time.Duration
	Retention       time.Duration
	JanitorInterval time.Duration

	// Query bounds every fetch. Query.Timeout also bounds the whole cycle.
	Query console.QueryOptions

	KillColumn int
	Clock      clock.Clock
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval:    DefaultPollInterval,
		Retention:       DefaultRetention,
		JanitorInterval: DefaultJanitorInterval,
		Query:           console.DefaultQueryOptions(),
		KillColumn:      DefaultKillColumn,
		Clock:           clock.WallClock,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.Retention <= 0 {
		o.Retention = def.Retention
	}
	if o.JanitorInterval <= 0 {
		o.JanitorInterval = def.JanitorInterval
	}
	if o.Query.Timeout <= 0 {
		o.Query.Timeout = def.Query.Timeout
	}
	if o.Query.Idle <= 0 {
		o.Query.Idle = def.Query.Idle
	}
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	return o
}

// Stats is a point-in-time view of the Correlator for status reporting.
type Stats struct {
	TrackedPawns       int       `json:"trackedPawns"`
	TrackedControllers int       `json:"trackedControllers"`
	Cycles             uint64    `json:"cycles"`
	Rejected           uint64    `json:"rejected"`
	FetchErrors        uint64    `json:"fetchErrors"`
	Skipped            uint64    `json:"skipped"`
	Events             uint64    `json:"events"`
	LastCycle          time.Time `json:"lastCycle,omitempty"`
	LastRejection      string    `json:"lastRejection,omitempty"`
}

type fetchResult struct {
	tables  Tables
	err     error
	started time.Time
}

// Correlator polls the console and publishes the events its snapshots imply.
type Correlator struct {
	logger      *zap.Logger
	fetcher     *Fetcher
	state       *State
	resolver    roster.Resolver
	subscribers Subscribers
	opts        Options

	statsMu sync.RWMutex
	stats   Stats
}

// New creates a Correlator.
func New(q console.Querier, resolver roster.Resolver, subs Subscribers, logger *zap.Logger, opts Options) *Correlator {
	opts = opts.withDefaults()
	return &Correlator{
		logger:      logger.Named("correlator"),
		fetcher:     NewFetcher(q, opts.Query, opts.KillColumn),
		state:       NewState(resolver, opts.Clock),
		resolver:    resolver,
		subscribers: subs,
		opts:        opts,
	}
}

// Start runs the poll and janitor timers. Blocks until ctx is cancelled.
// A fetch still running at shutdown is left to time out and its result is dropped.
func (c *Correlator) Start(ctx context.Context) error {
	c.logger.Info("Starting correlator",
		zap.Duration("pollInterval", c.opts.PollInterval),
		zap.Duration("retention", c.opts.Retention),
		zap.Int("killColumn", c.opts.KillColumn))

	poll := c.opts.Clock.NewTimer(c.opts.PollInterval)
	defer poll.Stop()
	janitor := c.opts.Clock.NewTimer(c.opts.JanitorInterval)
	defer janitor.Stop()

	// Buffered so an abandoned fetch can always deliver and exit.
	results := make(chan fetchResult, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Correlator stopped", zap.Bool("fetchInFlight", inFlight))
			return nil

		case <-poll.Chan():
			poll.Reset(c.opts.PollInterval)
			if inFlight {
				c.skip("in_flight")
				continue
			}
			if c.subscribers.Len() == 0 || len(c.resolver.Connected()) == 0 {
				c.skip("idle")
				continue
			}
			inFlight = true
			go c.fetch(ctx, results)

		case res := <-results:
			inFlight = false
			if ctx.Err() != nil {
				cyclesTotal.WithLabelValues("dropped").Inc()
				continue
			}
			c.apply(ctx, res)

		case <-janitor.Chan():
			janitor.Reset(c.opts.JanitorInterval)
			c.evictStale()
		}
	}
}

func (c *Correlator) fetch(ctx context.Context, results chan<- fetchResult) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Query.Timeout)
	defer cancel()

	started := c.opts.Clock.Now()
	tables, err := c.fetcher.Fetch(fctx)
	results <- fetchResult{tables: tables, err: err, started: started}
}

// apply validates, reconciles and publishes one fetched cycle.
func (c *Correlator) apply(ctx context.Context, res fetchResult) Events {
	now := c.opts.Clock.Now()
	cycleDuration.Observe(now.Sub(res.started).Seconds())

	if res.err != nil {
		cyclesTotal.WithLabelValues("fetch_error").Inc()
		c.logger.Warn("Snapshot fetch failed", zap.Error(res.err))
		c.updateStats(func(s *Stats) { s.FetchErrors++ })
		return Events{}
	}

	snap, err := Validate(res.tables)
	if err != nil {
		check := "unknown"
		var verr *ValidationError
		if errors.As(err, &verr) {
			check = verr.Check
		}
		cyclesTotal.WithLabelValues("rejected").Inc()
		rejectedTotal.WithLabelValues(check).Inc()
		c.logger.Debug("Snapshot rejected", zap.Error(err))
		c.updateStats(func(s *Stats) {
			s.Rejected++
			s.LastRejection = check
		})
		return Events{}
	}

	ev := c.state.Reconcile(snap)
	cyclesTotal.WithLabelValues("applied").Inc()
	eventsTotal.WithLabelValues(types.EventDeath).Add(float64(len(ev.Deaths)))
	eventsTotal.WithLabelValues(types.EventKill).Add(float64(len(ev.Kills)))
	eventsTotal.WithLabelValues(types.EventSpawn).Add(float64(len(ev.Spawns)))

	pawns, kills := c.state.Sizes()
	c.updateStats(func(s *Stats) {
		s.Cycles++
		s.Events += uint64(ev.Len())
		s.LastCycle = now
		s.TrackedPawns = pawns
		s.TrackedControllers = kills
	})

	if ev.Len() > 0 {
		c.logger.Debug("Publishing events",
			zap.Int("deaths", len(ev.Deaths)),
			zap.Int("kills", len(ev.Kills)),
			zap.Int("spawns", len(ev.Spawns)))
		c.subscribers.Publish(ctx, ev.All()...)
	}
	return ev
}

func (c *Correlator) evictStale() {
	evicted := c.state.EvictStale(c.opts.Retention)
	evictedTotal.Add(float64(evicted))
	pawns, kills := c.state.Sizes()
	c.updateStats(func(s *Stats) {
		s.TrackedPawns = pawns
		s.TrackedControllers = kills
	})
	if evicted > 0 {
		c.logger.Debug("Evicted stale pawns", zap.Int("evicted", evicted), zap.Int("remaining", pawns))
	}
}

func (c *Correlator) skip(reason string) {
	ticksSkippedTotal.WithLabelValues(reason).Inc()
	c.updateStats(func(s *Stats) { s.Skipped++ })
}

func (c *Correlator) updateStats(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	pawnCacheSize.Set(float64(c.stats.TrackedPawns))
	killCacheSize.Set(float64(c.stats.TrackedControllers))
	c.statsMu.Unlock()
}

// Stats returns a copy of the current counters.
func (c *Correlator) Stats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}
