package correlator

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/ondeath/internal/roster"
	"github.com/potooio/ondeath/internal/types"
)

var (
	alice = types.Player{Name: "Alice", ID: "1", Controller: "C1", State: "S1"}
	bob   = types.Player{Name: "Bob", ID: "2", Controller: "C2", State: "S2"}
)

func newTestState(t *testing.T) (*State, *testclock.Clock, *roster.Static) {
	t.Helper()
	clk := testclock.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver := roster.NewStatic(alice, bob)
	return NewState(resolver, clk), clk, resolver
}

// snapshot builds a one-pawn snapshot for P1 owned by C1, with C2's kill count.
func snapshot(dead bool, hitter types.ControllerID, c2Kills int) types.Snapshot {
	return types.Snapshot{
		Pawns: []types.PawnRow{{Index: 0, Controller: "C1", Pawn: "P1"}},
		Deads: []types.DeadRow{{Index: 0, Pawn: "P1", Dead: dead}},
		Hits:  []types.HitRow{{Index: 0, Pawn: "P1", Hitter: hitter}},
		Kills: []types.KillRow{
			{Controller: "C1", State: "S1", Kills: 0},
			{Controller: "C2", State: "S2", Kills: c2Kills},
		},
	}
}

func TestReconcile_FirstSightingSpawns(t *testing.T) {
	s, clk, _ := newTestState(t)

	ev := s.Reconcile(snapshot(false, "", 3))
	require.Len(t, ev.Spawns, 1)
	assert.Equal(t, types.SpawnEvent{Pawn: "P1", Player: alice}, ev.Spawns[0])
	assert.Empty(t, ev.Deaths)
	assert.Empty(t, ev.Kills)

	p, ok := s.Pawn("P1")
	require.True(t, ok)
	assert.Equal(t, clk.Now(), p.LastActive)
	k, ok := s.Kill("C2")
	require.True(t, ok)
	assert.Equal(t, KillState{Kills: 3, KillsAtLastEvent: 3}, k, "first sighting sets the baseline")
}

func TestReconcile_DeathCreditsKillerOnce(t *testing.T) {
	s, clk, _ := newTestState(t)
	s.Reconcile(snapshot(false, "", 3))

	// C2's count moves 3 -> 4 on the same cycle P1 turns dead.
	clk.Advance(100 * time.Millisecond)
	ev := s.Reconcile(snapshot(true, "C2", 4))
	assert.Empty(t, ev.Spawns)
	require.Len(t, ev.Deaths, 1)
	assert.Equal(t, types.DeathEvent{
		Pawn:   "P1",
		Player: alice,
		Killer: &types.Killer{Player: bob, Kills: 4},
	}, ev.Deaths[0])
	require.Len(t, ev.Kills, 1)
	assert.Equal(t, types.KillEvent{Player: bob, Kills: 4, Previous: 3}, ev.Kills[0])
	k, _ := s.Kill("C2")
	assert.Equal(t, KillState{Kills: 4, KillsAtLastEvent: 4}, k)

	// The same tables next cycle neither repeat the death nor the kill.
	clk.Advance(100 * time.Millisecond)
	ev = s.Reconcile(snapshot(true, "C2", 4))
	assert.Zero(t, ev.Len())
	k, _ = s.Kill("C2")
	assert.Equal(t, KillState{Kills: 4, KillsAtLastEvent: 4}, k)
	p, _ := s.Pawn("P1")
	assert.True(t, p.Dead)
	assert.Equal(t, clk.Now(), p.LastActive, "a dead pawn still seen stays fresh")
}

func TestReconcile_DeathWithoutKillCredit(t *testing.T) {
	s, _, _ := newTestState(t)
	s.Reconcile(snapshot(false, "", 3))

	// Hitter recorded, but its count did not move: no killer attached.
	ev := s.Reconcile(snapshot(true, "C2", 3))
	require.Len(t, ev.Deaths, 1)
	assert.Nil(t, ev.Deaths[0].Killer)
}

func TestReconcile_NoHitterNoKiller(t *testing.T) {
	s, _, _ := newTestState(t)
	s.Reconcile(snapshot(false, "", 3))

	ev := s.Reconcile(snapshot(true, "", 5))
	require.Len(t, ev.Deaths, 1)
	assert.Nil(t, ev.Deaths[0].Killer)
	k, _ := s.Kill("C2")
	assert.Equal(t, 3, k.KillsAtLastEvent, "baseline only advances on a credited death")
}

func TestReconcile_KillerNoLongerResolvable(t *testing.T) {
	s, _, resolver := newTestState(t)
	s.Reconcile(snapshot(false, "", 3))
	resolver.Disconnect("C2")

	ev := s.Reconcile(snapshot(true, "C2", 4))
	require.Len(t, ev.Deaths, 1)
	require.NotNil(t, ev.Deaths[0].Killer)
	assert.Equal(t, types.Killer{Player: types.Player{Controller: "C2"}, Kills: 4}, *ev.Deaths[0].Killer)
	assert.Empty(t, ev.Kills, "kill events need a resolvable player")
}

func TestReconcile_UnresolvableSpawnRetried(t *testing.T) {
	s, _, resolver := newTestState(t)
	resolver.Disconnect("C1")

	ev := s.Reconcile(snapshot(false, "", 0))
	assert.Empty(t, ev.Spawns)
	_, ok := s.Pawn("P1")
	assert.False(t, ok)

	resolver.Connect(alice)
	ev = s.Reconcile(snapshot(false, "", 0))
	require.Len(t, ev.Spawns, 1)
}

func TestReconcile_HitsAndDeadsForUnknownPawnsIgnored(t *testing.T) {
	s, _, _ := newTestState(t)
	ev := s.Reconcile(types.Snapshot{
		Deads: []types.DeadRow{{Pawn: "P9", Dead: true}},
		Hits:  []types.HitRow{{Pawn: "P9", Hitter: "C2"}},
	})
	assert.Zero(t, ev.Len())
	pawns, _ := s.Sizes()
	assert.Zero(t, pawns)
}

func TestReconcile_RespawnAfterAlive(t *testing.T) {
	s, _, _ := newTestState(t)
	s.Reconcile(snapshot(false, "", 0))
	ev := s.Reconcile(snapshot(true, "", 0))
	require.Len(t, ev.Deaths, 1)

	// Same pawn alive then dead again is a new edge.
	s.Reconcile(snapshot(false, "", 0))
	ev = s.Reconcile(snapshot(true, "", 0))
	assert.Len(t, ev.Deaths, 1)
}

func TestReconcile_UnknownKillCountSkipped(t *testing.T) {
	s, _, _ := newTestState(t)
	s.Reconcile(types.Snapshot{Kills: []types.KillRow{{Controller: "C2", Kills: -1}, {Kills: 7}}})
	_, kills := s.Sizes()
	assert.Zero(t, kills)
}

func TestEvents_All(t *testing.T) {
	ev := Events{
		Spawns: []types.SpawnEvent{{Pawn: "P2"}},
		Kills:  []types.KillEvent{{Kills: 1}},
		Deaths: []types.DeathEvent{{Pawn: "P1"}},
	}
	all := ev.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{types.EventDeath, types.EventKill, types.EventSpawn},
		[]string{all[0].Name(), all[1].Name(), all[2].Name()})
}

func TestEvictStale(t *testing.T) {
	s, clk, _ := newTestState(t)
	s.Reconcile(snapshot(false, "", 3))

	clk.Advance(30 * time.Second)
	assert.Zero(t, s.EvictStale(time.Minute))

	clk.Advance(31 * time.Second)
	assert.Equal(t, 1, s.EvictStale(time.Minute))
	_, ok := s.Pawn("P1")
	assert.False(t, ok)

	_, ok = s.Kill("C2")
	assert.True(t, ok, "kill cache is never evicted")

	// Evicted pawn comes back as a fresh spawn.
	ev := s.Reconcile(snapshot(false, "", 3))
	assert.Len(t, ev.Spawns, 1)
}

func TestEvictStale_RefreshedPawnSurvives(t *testing.T) {
	s, clk, _ := newTestState(t)
	s.Reconcile(snapshot(false, "", 3))
	clk.Advance(50 * time.Second)
	s.Reconcile(snapshot(false, "", 3))
	clk.Advance(50 * time.Second)

	assert.Zero(t, s.EvictStale(time.Minute))
}
