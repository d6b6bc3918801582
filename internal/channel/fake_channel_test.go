package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeChannelSendRequiresOpen(t *testing.T) {
	c := NewFakeChannel()
	err := c.Send([]byte("hello"))
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, c.Dial("ws://example"))
	require.NoError(t, c.Send([]byte("hello")))
	assert.Equal(t, [][]byte{[]byte("hello")}, c.Outbox())
}

func TestFakeChannelReceiveUnblocksOnClose(t *testing.T) {
	c := NewFakeChannel()
	require.NoError(t, c.Dial("ws://example"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Receive()
		done <- err
	}()

	require.NoError(t, c.Close())
	err := <-done
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFakeChannelPushDeliversToReceive(t *testing.T) {
	c := NewFakeChannel()
	require.NoError(t, c.Dial("ws://example"))
	c.Push([]byte("frame"))

	got, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), got)
}
