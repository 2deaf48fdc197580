package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/console"
	"github.com/potooio/ondeath/internal/testutil"
	"github.com/potooio/ondeath/internal/types"
)

func scriptRoster(sc *testutil.ScriptedConsole) {
	sc.Set(console.GetAll(types.ClassPlayerController, "PlayerState"),
		testutil.StateLine(0, "BP_PlayerController_C_1", "BP_PlayerState_C_1"),
		testutil.StateLine(1, "BP_PlayerController_C_2", "BP_PlayerState_C_2"),
		testutil.StateLine(2, "BP_PlayerController_C_3", ""),
	)
	sc.Set(console.GetAll(types.ClassPlayerState, "PlayerName"),
		testutil.NameLine(0, "BP_PlayerState_C_1", "Alice"),
		testutil.NameLine(1, "BP_PlayerState_C_2", "Bob the Builder"),
	)
	sc.Set(console.GetAll(types.ClassPlayerState, "UserId"),
		testutil.UserIDLine(0, "BP_PlayerState_C_1", "76561198000000001"),
	)
}

func TestRoster_Refresh(t *testing.T) {
	sc := testutil.NewScriptedConsole()
	scriptRoster(sc)
	clk := testclock.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	r := New(sc, zap.NewNop(), Options{Clock: clk})
	require.NoError(t, r.Refresh(context.Background()))

	alice, ok := r.Resolve("BP_PlayerController_C_1")
	require.True(t, ok)
	assert.Equal(t, types.Player{
		Name:       "Alice",
		ID:         "76561198000000001",
		Controller: "BP_PlayerController_C_1",
		State:      "BP_PlayerState_C_1",
	}, alice)

	bob, ok := r.Resolve("BP_PlayerController_C_2")
	require.True(t, ok)
	assert.Equal(t, "Bob the Builder", bob.Name)
	assert.Empty(t, bob.ID)

	_, ok = r.Resolve("BP_PlayerController_C_3")
	assert.False(t, ok, "controller without a player state is not connected")

	connected := r.Connected()
	require.Len(t, connected, 2)
	assert.Equal(t, "Alice", connected[0].Name)
	assert.Equal(t, "Bob the Builder", connected[1].Name)
	assert.Equal(t, clk.Now(), r.LastRefresh())
}

func TestRoster_RefreshReplaces(t *testing.T) {
	sc := testutil.NewScriptedConsole()
	scriptRoster(sc)
	r := New(sc, zap.NewNop(), Options{})
	require.NoError(t, r.Refresh(context.Background()))
	require.Len(t, r.Connected(), 2)

	sc.Set(console.GetAll(types.ClassPlayerController, "PlayerState"))
	require.NoError(t, r.Refresh(context.Background()))
	assert.Empty(t, r.Connected())
}

func TestRoster_RefreshErrorKeepsPrevious(t *testing.T) {
	sc := testutil.NewScriptedConsole()
	scriptRoster(sc)
	r := New(sc, zap.NewNop(), Options{})
	require.NoError(t, r.Refresh(context.Background()))

	sc.SetError(errors.New("console gone"))
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, r.Connected(), 2)
}

func TestRoster_StartStopsOnCancel(t *testing.T) {
	sc := testutil.NewScriptedConsole()
	scriptRoster(sc)
	r := New(sc, zap.NewNop(), Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.Connected()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(types.Player{Name: "Alice", Controller: "c1"})
	s.Connect(types.Player{Name: "Bob", Controller: "c2"})

	p, ok := s.Resolve("c2")
	require.True(t, ok)
	assert.Equal(t, "Bob", p.Name)
	assert.Len(t, s.Connected(), 2)

	s.Disconnect("c1")
	_, ok = s.Resolve("c1")
	assert.False(t, ok)

	var _ Resolver = s
	var _ Resolver = (*Roster)(nil)
}
