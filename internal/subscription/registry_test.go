package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/potooio/ondeath/internal/notifier"
	"github.com/potooio/ondeath/internal/testutil"
	"github.com/potooio/ondeath/internal/types"
)

func newTestRegistry(t *testing.T, logger *zap.Logger, store Store, senders ...notifier.Sender) *Registry {
	t.Helper()
	dir := NewStaticDirectory(logger, senders...)
	return NewRegistry(dir, store, notifier.NewDispatcher(logger, notifier.DefaultDispatcherOptions()), logger)
}

func TestRegistry_SubscribeReceiveUnsubscribe(t *testing.T) {
	ctx := context.Background()
	stats := testutil.NewRecordingSender("statsplugin")
	store := NewMemoryStore()
	r := newTestRegistry(t, zap.NewNop(), store, stats)

	require.NoError(t, r.HandleEvent(ctx, types.EventSubscribe, "statsplugin"))
	names, _ := store.Load(ctx)
	assert.Equal(t, []string{"statsplugin"}, names)
	assert.Equal(t, 1, r.Len())

	r.Publish(ctx, types.DeathEvent{Pawn: "P1"}, types.SpawnEvent{Pawn: "P2"})
	assert.Equal(t, []string{types.EventDeath, types.EventSpawn}, stats.Names())

	require.NoError(t, r.HandleEvent(ctx, types.EventUnsubscribe, "statsplugin"))
	names, _ = store.Load(ctx)
	assert.Empty(t, names)
	assert.Zero(t, r.Len())

	r.Publish(ctx, types.DeathEvent{Pawn: "P3"})
	assert.Len(t, stats.Events(), 2)
}

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := newTestRegistry(t, zap.NewNop(), store, testutil.NewRecordingSender("a"))

	require.NoError(t, r.Subscribe(ctx, "a"))
	require.NoError(t, r.Subscribe(ctx, "a"))
	assert.Equal(t, []string{"a"}, r.Names())
	assert.Equal(t, 2, store.Saves(), "every request persists")
}

func TestRegistry_SubscribeUnresolvable(t *testing.T) {
	ctx := context.Background()
	core, observed := observer.New(zapcore.WarnLevel)
	store := NewMemoryStore()
	r := newTestRegistry(t, zap.New(core), store)

	err := r.Subscribe(ctx, "ghost")
	require.ErrorIs(t, err, ErrUnresolvable)
	assert.Zero(t, r.Len())
	assert.Equal(t, 1, store.Saves())

	logs := observed.FilterMessage("Subscriber is not enabled, removing subscription").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "ghost", logs[0].ContextMap()["subscriber"])

	// Through the event protocol it is only a diagnostic.
	assert.NoError(t, r.HandleEvent(ctx, types.EventSubscribe, "ghost"))
}

func TestRegistry_OrderPreserved(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, zap.NewNop(), NewMemoryStore(),
		testutil.NewRecordingSender("a"),
		testutil.NewRecordingSender("b"),
		testutil.NewRecordingSender("c"),
	)
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, r.Subscribe(ctx, n))
	}
	require.NoError(t, r.Unsubscribe(ctx, "a"))
	assert.Equal(t, []string{"c", "b"}, r.Names())
}

func TestRegistry_InitDropsUnresolvable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("a", "gone", "b")
	r := newTestRegistry(t, zap.NewNop(), store,
		testutil.NewRecordingSender("a"),
		testutil.NewRecordingSender("b"),
	)

	require.NoError(t, r.Init(ctx))
	assert.Equal(t, []string{"a", "b"}, r.Names())
	names, _ := store.Load(ctx)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestRegistry_PersistFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.FailWith(errors.New("disk full"))
	r := newTestRegistry(t, zap.NewNop(), store, testutil.NewRecordingSender("a"))

	err := r.Subscribe(ctx, "a")
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, r.Len(), "in-memory state still changes")
}

func TestRegistry_HandleEventIgnoresOthers(t *testing.T) {
	store := NewMemoryStore()
	r := newTestRegistry(t, zap.NewNop(), store, testutil.NewRecordingSender("a"))
	require.NoError(t, r.HandleEvent(context.Background(), "ondeath:other", "a"))
	assert.Zero(t, store.Saves())
}

func TestStaticDirectory_Route(t *testing.T) {
	routed := 0
	dir := NewStaticDirectory(zap.NewNop(), testutil.NewRecordingSender("known")).
		WithRoute(func(name string) (notifier.Sender, error) {
			routed++
			if name == "bad" {
				return nil, errors.New("invalid subject")
			}
			return testutil.NewRecordingSender(name), nil
		})

	s, ok := dir.Lookup("known")
	require.True(t, ok)
	assert.Equal(t, "known", s.Name())
	assert.Zero(t, routed)

	s, ok = dir.Lookup("dynamic")
	require.True(t, ok)
	assert.Equal(t, "dynamic", s.Name())
	_, _ = dir.Lookup("dynamic")
	assert.Equal(t, 1, routed, "routed senders are cached")

	_, ok = dir.Lookup("bad")
	assert.False(t, ok)
	_, ok = dir.Lookup("")
	assert.False(t, ok)

	dir.Remove("known")
	assert.ElementsMatch(t, []string{"dynamic"}, dir.Names())
}
