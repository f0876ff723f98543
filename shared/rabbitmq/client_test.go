package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
)

func TestClient_IsConnectedDoesNotWaitOnLocks(t *testing.T) {
	tests := []struct {
		name string
		lock func(c *Client) func()
	}{
		{
			name: "publish in flight",
			lock: func(c *Client) func() { c.pubMu.Lock(); return c.pubMu.Unlock },
		},
		{
			name: "consumer registration in flight",
			lock: func(c *Client) func() { c.mu.Lock(); return c.mu.Unlock },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{config: &Config{}, logger: logger.NewDiscard().Logger}
			unlock := tt.lock(c)
			defer unlock()

			done := make(chan bool, 1)
			go func() { done <- c.IsConnected() }()

			select {
			case connected := <-done:
				assert.False(t, connected)
			case <-time.After(time.Second):
				t.Fatal("IsConnected blocked on a held lock")
			}
		})
	}
}

func TestClient_ClosedClientRejectsCalls(t *testing.T) {
	c := &Client{config: &Config{}, logger: logger.NewDiscard().Logger}
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish(context.Background(), Message{RoutingKey: "events"}), ErrNotConnected)

	_, err := c.Consume("events", "worker")
	assert.ErrorIs(t, err, ErrNotConnected)
}
