package vmm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"novaos/kernel"
	"novaos/kernel/mem/pmm"
)

func TestInitRecordsHHDMOffsetAndRootPML4(t *testing.T) {
	defer func() {
		SetHHDMOffset(0)
		rootPML4 = 0
	}()

	Init(0xffff800000000000, pmm.Frame(7))

	require.Equal(t, uintptr(0xffff800000000000), HHDMOffset())
	require.Equal(t, pmm.Frame(7), rootPML4)
}

func TestSetFrameAllocatorIsUsedByAllocFrameFn(t *testing.T) {
	defer SetFrameAllocator(nil)

	want := pmm.Frame(42)
	SetFrameAllocator(func() (pmm.Frame, *kernel.Error) {
		return want, nil
	})

	got, err := allocFrameFn()
	require.Nil(t, err)
	require.Equal(t, want, got)
}
