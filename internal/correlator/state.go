package correlator

import (
	"time"

	"github.com/juju/clock"

	"github.com/potooio/ondeath/internal/roster"
	"github.com/potooio/ondeath/internal/types"
)

// PawnState is the cached view of one tracked pawn.
type PawnState struct {
	Pawn       types.PawnID
	Controller types.ControllerID
	Player     types.Player
	Hitter     types.ControllerID
	Dead       bool
	LastActive time.Time
}

// KillState is the cached kill count of one controller. KillsAtLastEvent is
// the count at which the controller was last credited with a death.
type KillState struct {
	Kills            int
	KillsAtLastEvent int
}

// Events is what one reconciliation derived, in publication order.
type Events struct {
	Deaths []types.DeathEvent
	Kills  []types.KillEvent
	Spawns []types.SpawnEvent
}

// Len returns the total number of events.
func (e Events) Len() int {
	return len(e.Deaths) + len(e.Kills) + len(e.Spawns)
}

// All flattens the events: deaths, then kills, then spawns.
func (e Events) All() []types.Event {
	all := make([]types.Event, 0, e.Len())
	for _, d := range e.Deaths {
		all = append(all, d)
	}
	for _, k := range e.Kills {
		all = append(all, k)
	}
	for _, s := range e.Spawns {
		all = append(all, s)
	}
	return all
}

// State holds the pawn and kill caches. It is not safe for concurrent use;
// the Correlator confines it to its scheduling goroutine.
type State struct {
	clock    clock.Clock
	resolver roster.Resolver
	pawns    map[types.PawnID]*PawnState
	kills    map[types.ControllerID]*KillState
}

// NewState creates empty caches.
func NewState(resolver roster.Resolver, clk clock.Clock) *State {
	if clk == nil {
		clk = clock.WallClock
	}
	return &State{
		clock:    clk,
		resolver: resolver,
		pawns:    make(map[types.PawnID]*PawnState),
		kills:    make(map[types.ControllerID]*KillState),
	}
}

// Reconcile merges snap into the caches and returns the events it implies.
func (s *State) Reconcile(snap types.Snapshot) Events {
	var ev Events
	now := s.clock.Now()

	// Kill counts first so a death in this snapshot can see its killer's new count.
	for _, k := range snap.Kills {
		if k.Controller == "" || k.Kills < 0 {
			continue
		}
		cached, ok := s.kills[k.Controller]
		if !ok {
			s.kills[k.Controller] = &KillState{Kills: k.Kills, KillsAtLastEvent: k.Kills}
			continue
		}
		previous := cached.Kills
		cached.Kills = k.Kills
		if k.Kills > previous {
			if player, ok := s.resolver.Resolve(k.Controller); ok {
				ev.Kills = append(ev.Kills, types.KillEvent{Player: player, Kills: k.Kills, Previous: previous})
			}
		}
	}

	for _, p := range snap.Pawns {
		if p.Pawn == "" {
			continue
		}
		if cached, ok := s.pawns[p.Pawn]; ok {
			cached.LastActive = now
			continue
		}
		player, ok := s.resolver.Resolve(p.Controller)
		if !ok {
			// Retried next cycle.
			continue
		}
		s.pawns[p.Pawn] = &PawnState{
			Pawn:       p.Pawn,
			Controller: p.Controller,
			Player:     player,
			LastActive: now,
		}
		ev.Spawns = append(ev.Spawns, types.SpawnEvent{Pawn: p.Pawn, Player: player})
	}

	for _, h := range snap.Hits {
		if cached, ok := s.pawns[h.Pawn]; ok {
			cached.Hitter = h.Hitter
			cached.LastActive = now
		}
	}

	for _, d := range snap.Deads {
		cached, ok := s.pawns[d.Pawn]
		if !ok {
			continue
		}
		if d.Dead && !cached.Dead {
			ev.Deaths = append(ev.Deaths, types.DeathEvent{
				Pawn:   cached.Pawn,
				Player: cached.Player,
				Killer: s.creditKill(cached.Hitter),
			})
		}
		cached.Dead = d.Dead
		cached.LastActive = now
	}

	return ev
}

// creditKill returns the killer behind a death if hitter's kill count moved
// since its last credited kill, and advances the baseline.
func (s *State) creditKill(hitter types.ControllerID) *types.Killer {
	if hitter == "" {
		return nil
	}
	k, ok := s.kills[hitter]
	if !ok || k.Kills <= k.KillsAtLastEvent {
		return nil
	}
	k.KillsAtLastEvent = k.Kills

	player, ok := s.resolver.Resolve(hitter)
	if !ok {
		player = types.Player{Controller: hitter}
	}
	return &types.Killer{Player: player, Kills: k.Kills}
}

// EvictStale removes pawns not seen for longer than retention and returns how
// many were removed. The kill cache is never touched.
func (s *State) EvictStale(retention time.Duration) int {
	cutoff := s.clock.Now().Add(-retention)

	keys := make([]types.PawnID, 0, len(s.pawns))
	for id := range s.pawns {
		keys = append(keys, id)
	}

	evicted := 0
	for _, id := range keys {
		if p, ok := s.pawns[id]; ok && p.LastActive.Before(cutoff) {
			delete(s.pawns, id)
			evicted++
		}
	}
	return evicted
}

// Pawn returns a copy of the cached pawn.
func (s *State) Pawn(id types.PawnID) (PawnState, bool) {
	p, ok := s.pawns[id]
	if !ok {
		return PawnState{}, false
	}
	return *p, true
}

// Kill returns a copy of the cached kill state of controller.
func (s *State) Kill(controller types.ControllerID) (KillState, bool) {
	k, ok := s.kills[controller]
	if !ok {
		return KillState{}, false
	}
	return *k, true
}

// Sizes returns the number of cached pawns and controllers.
func (s *State) Sizes() (pawns, kills int) {
	return len(s.pawns), len(s.kills)
}
