package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/types"
)

type published struct {
	subject string
	data    []byte
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{subject: subject, data: data})
	return nil
}

func TestNewNATSSender_Validation(t *testing.T) {
	pub := &mockPublisher{}
	_, err := NewNATSSender(pub, zap.NewNop(), NATSSenderConfig{Subject: "ondeath.x"})
	assert.Error(t, err)
	_, err = NewNATSSender(pub, zap.NewNop(), NATSSenderConfig{Name: "x"})
	assert.Error(t, err)
	_, err = NewNATSSender(pub, zap.NewNop(), NATSSenderConfig{Name: "x", Subject: "ondeath.>"})
	assert.Error(t, err)
}

func TestNATSSender_Send(t *testing.T) {
	pub := &mockPublisher{}
	ns, err := NewNATSSender(pub, zap.NewNop(), NATSSenderConfig{Name: "statsplugin", Subject: "ondeath.statsplugin."})
	require.NoError(t, err)

	require.NoError(t, ns.Send(context.Background(), testDeath()))
	require.NoError(t, ns.Send(context.Background(), types.SpawnEvent{Pawn: "BP_FigureV2_C_1"}))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "ondeath.statsplugin.death", pub.msgs[0].subject)
	assert.Equal(t, "ondeath.statsplugin.spawn", pub.msgs[1].subject)

	var env decodedEnvelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &env))
	assert.Equal(t, types.EventDeath, env.Type)
	assert.Equal(t, "statsplugin", env.Subscriber)
}

func TestNATSSender_Filter(t *testing.T) {
	pub := &mockPublisher{}
	ns, err := NewNATSSender(pub, zap.NewNop(), NATSSenderConfig{
		Name: "killfeed", Subject: "ondeath.killfeed", Events: []string{types.EventKill},
	})
	require.NoError(t, err)

	require.NoError(t, ns.Send(context.Background(), testDeath()))
	require.NoError(t, ns.Send(context.Background(), types.KillEvent{Kills: 1}))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "ondeath.killfeed.kill", pub.msgs[0].subject)
}

func TestNATSSender_PublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	ns, err := NewNATSSender(pub, zap.NewNop(), NATSSenderConfig{Name: "a", Subject: "ondeath.a"})
	require.NoError(t, err)

	err = ns.Send(context.Background(), testDeath())
	assert.ErrorContains(t, err, "not connected")
}

func TestEventSuffix(t *testing.T) {
	assert.Equal(t, "death", EventSuffix(types.EventDeath))
	assert.Equal(t, "kill", EventSuffix("kill"))
}
