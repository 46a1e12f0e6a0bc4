package net

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoopbackRoundTripsFrames(t *testing.T) {
	var l Loopback

	_, ok := l.NextFrame()
	require.False(t, ok)

	l.DeliverFrame([]byte{1, 2, 3})
	l.DeliverFrame([]byte{4, 5})

	f1, ok := l.NextFrame()
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, f1)

	f2, ok := l.NextFrame()
	require.True(t, ok)
	require.Equal(t, []byte{4, 5}, f2)

	_, ok = l.NextFrame()
	require.False(t, ok)
}

func TestLoopbackCopiesDeliveredFrame(t *testing.T) {
	var l Loopback
	frame := []byte{1, 2, 3}
	l.DeliverFrame(frame)
	frame[0] = 0xFF

	got, _ := l.NextFrame()
	require.Equal(t, byte(1), got[0], "Loopback must copy the frame, not alias the caller's buffer")
}
