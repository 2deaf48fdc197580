package natsbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("  ", zap.NewNop(), Options{})
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222", zap.NewNop(), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), c.opts)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsConnected())
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222", zap.NewNop(), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, c.Publish(ctx, "ondeath.test", []byte("{}")), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe(ctx, "ondeath.test", func(context.Context, []byte) {}), ErrNotConnected)
	_, err = c.KeyValue(ctx, "ondeath")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ConnectFailure(t *testing.T) {
	// Port 1 is never a NATS server.
	c, err := NewClient("nats://127.0.0.1:1", zap.NewNop(), Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, c.Connect(ctx))
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestClient_CloseIdempotent(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222", zap.NewNop(), Options{})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StatusClosed, c.Status())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}
