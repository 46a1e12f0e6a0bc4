package irq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleIRQUnmasksTheLine(t *testing.T) {
	resetHandlerTables(t)
	withMockedPorts(t)
	masterMask = 0xFF

	HandleIRQ(3, func(frame *Frame, regs *Regs) {})

	require.Equal(t, byte(0xFF&^(1<<3)), masterMask)
	require.NotNil(t, irqHandlers[3])
}
