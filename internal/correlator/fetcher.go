package correlator

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/potooio/ondeath/internal/console"
	"github.com/potooio/ondeath/internal/types"
)

var (
	pawnPattern = console.Property(types.ClassPlayerController, "controller", "Pawn",
		console.ObjectRef(types.ClassFigure, "pawn"))
	deadPattern = console.Property(types.ClassFigure, "pawn", "bIsDead", `(?P<dead>True|False)`)
	hitPattern  = console.Property(types.ClassFigure, "pawn", "LastHitBy",
		console.ObjectRef(types.ClassPlayerController, "hitter"))
	statePattern = console.Property(types.ClassPlayerController, "controller", "PlayerState",
		console.ObjectRef(types.ClassPlayerState, "state"))
	leaderboardPattern = console.ArrayHeader(types.ClassPlayerState, "state", "LeaderboardData")
)

var (
	pawnCommand        = console.GetAll(types.ClassPlayerController, "Pawn")
	deadCommand        = console.GetAll(types.ClassFigure, "bIsDead")
	hitCommand         = console.GetAll(types.ClassFigure, "LastHitBy")
	stateCommand       = console.GetAll(types.ClassPlayerController, "PlayerState")
	leaderboardCommand = console.GetAll(types.ClassPlayerState, "LeaderboardData")
)

// Tables is the raw result of one cycle's five fetches, plus the kill rows
// joined from player states and leaderboards.
type Tables struct {
	Pawns        []types.PawnRow
	States       []types.StateRow
	Leaderboards []types.LeaderboardRow
	Hits         []types.HitRow
	Deads        []types.DeadRow
	Kills        []types.KillRow
}

// Fetcher issues the five GetAll queries of a cycle.
type Fetcher struct {
	querier    console.Querier
	opts       console.QueryOptions
	killColumn int
}

// NewFetcher creates a Fetcher. killColumn is the leaderboard position holding
// the cumulative kill count.
func NewFetcher(q console.Querier, opts console.QueryOptions, killColumn int) *Fetcher {
	opts.First = console.FirstIndexZero
	opts.Last = nil
	return &Fetcher{querier: q, opts: opts, killColumn: killColumn}
}

// Fetch runs all five queries concurrently. A query that times out yields a
// short table, not an error; errors come only from the console itself.
func (f *Fetcher) Fetch(ctx context.Context) (Tables, error) {
	var (
		pawns, deads, hits, states []console.Match
		leaderboards               []console.Group
	)

	g, gctx := errgroup.WithContext(ctx)
	flat := func(dst *[]console.Match, command string, pattern *regexp.Regexp) {
		g.Go(func() error {
			m, err := f.querier.Query(gctx, command, pattern, f.opts)
			if err != nil {
				return fmt.Errorf("%s: %w", command, err)
			}
			*dst = m
			return nil
		})
	}
	flat(&pawns, pawnCommand, pawnPattern)
	flat(&deads, deadCommand, deadPattern)
	flat(&hits, hitCommand, hitPattern)
	flat(&states, stateCommand, statePattern)
	g.Go(func() error {
		groups, err := f.querier.QueryNested(gctx, leaderboardCommand, leaderboardPattern, console.ArrayElement, f.opts)
		if err != nil {
			return fmt.Errorf("%s: %w", leaderboardCommand, err)
		}
		leaderboards = groups
		return nil
	})
	if err := g.Wait(); err != nil {
		return Tables{}, err
	}

	t := Tables{
		Pawns:        make([]types.PawnRow, 0, len(pawns)),
		States:       make([]types.StateRow, 0, len(states)),
		Leaderboards: make([]types.LeaderboardRow, 0, len(leaderboards)),
		Hits:         make([]types.HitRow, 0, len(hits)),
		Deads:        make([]types.DeadRow, 0, len(deads)),
	}
	for _, m := range pawns {
		idx, _ := m.Int("index")
		t.Pawns = append(t.Pawns, types.PawnRow{
			Index:      idx,
			Controller: types.ControllerID(m.Group("controller")),
			Pawn:       types.PawnID(m.Group("pawn")),
		})
	}
	for _, m := range deads {
		idx, _ := m.Int("index")
		t.Deads = append(t.Deads, types.DeadRow{
			Index: idx,
			Pawn:  types.PawnID(m.Group("pawn")),
			Dead:  m.Group("dead") == "True",
		})
	}
	for _, m := range hits {
		idx, _ := m.Int("index")
		t.Hits = append(t.Hits, types.HitRow{
			Index:  idx,
			Pawn:   types.PawnID(m.Group("pawn")),
			Hitter: types.ControllerID(m.Group("hitter")),
		})
	}
	for _, m := range states {
		idx, _ := m.Int("index")
		t.States = append(t.States, types.StateRow{
			Index:      idx,
			Controller: types.ControllerID(m.Group("controller")),
			State:      types.PlayerStateID(m.Group("state")),
		})
	}
	for _, grp := range leaderboards {
		idx, _ := grp.Header.Int("index")
		row := types.LeaderboardRow{
			Index:   idx,
			State:   types.PlayerStateID(grp.Header.Group("state")),
			Columns: make([]int, 0, len(grp.Children)),
		}
		for _, child := range grp.Children {
			v, _ := child.Int("column")
			row.Columns = append(row.Columns, v)
		}
		t.Leaderboards = append(t.Leaderboards, row)
	}
	t.Kills = JoinKills(t.States, t.Leaderboards, f.killColumn)
	return t, nil
}

// JoinKills pairs each leaderboard row with the controller whose player state
// it belongs to. The controller is empty when no state row matches, and Kills
// is -1 when the row has no value at killColumn.
func JoinKills(states []types.StateRow, leaderboards []types.LeaderboardRow, killColumn int) []types.KillRow {
	owner := make(map[types.PlayerStateID]types.ControllerID, len(states))
	for _, s := range states {
		if s.State == "" {
			continue
		}
		if _, seen := owner[s.State]; !seen {
			owner[s.State] = s.Controller
		}
	}

	kills := make([]types.KillRow, 0, len(leaderboards))
	for _, lb := range leaderboards {
		k := types.KillRow{Controller: owner[lb.State], State: lb.State, Kills: -1}
		if killColumn >= 0 && killColumn < len(lb.Columns) {
			k.Kills = lb.Columns[killColumn]
		}
		kills = append(kills, k)
	}
	return kills
}
