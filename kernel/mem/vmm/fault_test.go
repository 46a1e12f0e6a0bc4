package vmm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlePageFaultRescuesMMIOWindow(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	addr := uintptr(0xE0001234)
	handled := HandlePageFault(addr, 0)
	require.True(t, handled)

	require.Equal(t, addr&^0xfff, GetPhysical(addr)&^0xfff)
}

func TestHandlePageFaultIgnoresAddressesOutsideWindow(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	require.False(t, HandlePageFault(0x1000, 0))
	require.False(t, HandlePageFault(0x200000000, 0))
}

func TestHandlePageFaultIgnoresProtectionViolations(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	require.False(t, HandlePageFault(0xE0001000, FaultPresent))
}
