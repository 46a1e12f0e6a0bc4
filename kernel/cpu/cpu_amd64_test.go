package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsIntel(t *testing.T) {
	defer func() { cpuidFn = ID }()

	specs := []struct {
		eax, ebx, ecx, edx uint32
		exp                bool
	}{
		// CPUID output from an Intel CPU.
		{0xd, 0x756e6547, 0x6c65746e, 0x49656e69, true},
		// CPUID output from an AMD Athlon CPU.
		{0x1, 0x68747541, 0x444d4163, 0x69746e65, false},
	}

	for _, spec := range specs {
		spec := spec
		cpuidFn = func(_ uint32) (uint32, uint32, uint32, uint32) {
			return spec.eax, spec.ebx, spec.ecx, spec.edx
		}
		require.Equal(t, spec.exp, IsIntel())
	}
}
