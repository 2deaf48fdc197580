// Package roster resolves player controllers to the identities of connected players.
package roster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/potooio/ondeath/internal/console"
	"github.com/potooio/ondeath/internal/types"
)

// Resolver maps controllers to connected players.
type Resolver interface {
	// Resolve returns the connected player behind controller, if any.
	Resolve(controller types.ControllerID) (types.Player, bool)

	// Connected lists every currently connected player.
	Connected() []types.Player
}

var (
	controllerStatePattern = console.Property(types.ClassPlayerController, "controller", "PlayerState",
		console.ObjectRef(types.ClassPlayerState, "state"))
	playerNamePattern = console.Property(types.ClassPlayerState, "state", "PlayerName", `(?P<name>.+)`)
	userIDPattern     = console.Property(types.ClassPlayerState, "state", "UserId", `(?P<id>\S+)`)
)

// Options configures the Roster.
type Options struct {
	// Interval between refreshes. Default 2s.
	Interval time.Duration

	// Query bounds each console query of a refresh.
	Query console.QueryOptions

	// Clock drives the refresh loop. Default clock.WallClock.
	Clock clock.Clock
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	q := console.DefaultQueryOptions()
	q.First = console.FirstIndexZero
	return Options{
		Interval: 2 * time.Second,
		Query:    q,
		Clock:    clock.WallClock,
	}
}

// Roster keeps the set of connected players current by polling the console.
type Roster struct {
	logger  *zap.Logger
	querier console.Querier
	opts    Options

	mu           sync.RWMutex
	byController map[types.ControllerID]types.Player
	lastRefresh  time.Time
}

// New creates a Roster. Zero-valued options fall back to DefaultOptions.
func New(q console.Querier, logger *zap.Logger, opts Options) *Roster {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Query.Timeout <= 0 {
		opts.Query = def.Query
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Roster{
		logger:       logger.Named("roster"),
		querier:      q,
		opts:         opts,
		byController: make(map[types.ControllerID]types.Player),
	}
}

// Start refreshes immediately and then on every interval. Blocks until ctx is cancelled.
func (r *Roster) Start(ctx context.Context) error {
	r.logger.Info("Starting roster", zap.Duration("interval", r.opts.Interval))
	for {
		if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("Roster refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("Roster stopped")
			return nil
		case <-r.opts.Clock.After(r.opts.Interval):
		}
	}
}

// Refresh queries controller states, player names and user ids concurrently
// and replaces the roster with their join. Controllers whose state has no name
// are not considered connected.
func (r *Roster) Refresh(ctx context.Context) error {
	var states, names, ids []console.Match

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		states, err = r.querier.Query(gctx, console.GetAll(types.ClassPlayerController, "PlayerState"), controllerStatePattern, r.opts.Query)
		return err
	})
	g.Go(func() (err error) {
		names, err = r.querier.Query(gctx, console.GetAll(types.ClassPlayerState, "PlayerName"), playerNamePattern, r.opts.Query)
		return err
	})
	g.Go(func() (err error) {
		ids, err = r.querier.Query(gctx, console.GetAll(types.ClassPlayerState, "UserId"), userIDPattern, r.opts.Query)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	nameByState := make(map[types.PlayerStateID]string, len(names))
	for _, m := range names {
		nameByState[types.PlayerStateID(m.Group("state"))] = m.Group("name")
	}
	idByState := make(map[types.PlayerStateID]string, len(ids))
	for _, m := range ids {
		idByState[types.PlayerStateID(m.Group("state"))] = m.Group("id")
	}

	next := make(map[types.ControllerID]types.Player, len(states))
	for _, m := range states {
		state := types.PlayerStateID(m.Group("state"))
		name, ok := nameByState[state]
		if state == "" || !ok {
			continue
		}
		controller := types.ControllerID(m.Group("controller"))
		next[controller] = types.Player{
			Name:       name,
			ID:         idByState[state],
			Controller: controller,
			State:      state,
		}
	}

	r.mu.Lock()
	prev := len(r.byController)
	r.byController = next
	r.lastRefresh = r.opts.Clock.Now()
	r.mu.Unlock()

	if prev != len(next) {
		r.logger.Debug("Roster changed", zap.Int("previous", prev), zap.Int("connected", len(next)))
	}
	return nil
}

// Resolve implements Resolver.
func (r *Roster) Resolve(controller types.ControllerID) (types.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byController[controller]
	return p, ok
}

// Connected implements Resolver. Players are sorted by name.
func (r *Roster) Connected() []types.Player {
	r.mu.RLock()
	players := make([]types.Player, 0, len(r.byController))
	for _, p := range r.byController {
		players = append(players, p)
	}
	r.mu.RUnlock()

	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players
}

// LastRefresh returns when the roster was last replaced.
func (r *Roster) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}
