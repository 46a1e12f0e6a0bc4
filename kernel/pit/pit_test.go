package pit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withMockedHooks(t *testing.T) *[]struct {
	port  uint16
	value uint8
} {
	t.Helper()
	var calls []struct {
		port  uint16
		value uint8
	}
	origOutb, origHalt := outbFn, haltFn
	outbFn = func(port uint16, value uint8) {
		calls = append(calls, struct {
			port  uint16
			value uint8
		}{port, value})
	}
	haltFn = func() {}
	t.Cleanup(func() {
		outbFn = origOutb
		haltFn = origHalt
	})
	return &calls
}

func TestInitProgramsCommandAndDivisor(t *testing.T) {
	calls := withMockedHooks(t)

	Init(1000)

	require.Len(t, *calls, 3)
	require.Equal(t, uint16(commandPort), (*calls)[0].port)
	require.Equal(t, uint8(commandByte), (*calls)[0].value)
	require.Equal(t, uint16(channel0Data), (*calls)[1].port)
	require.Equal(t, uint16(channel0Data), (*calls)[2].port)

	divisor := uint16((*calls)[1].value) | uint16((*calls)[2].value)<<8
	require.Equal(t, uint16(inputFrequency/1000), divisor)
	require.Equal(t, uint32(1000), Frequency())
	require.Equal(t, uint64(0), Ticks())
}

func TestInitDefaultsToOneKilohertz(t *testing.T) {
	withMockedHooks(t)
	Init(0)
	require.Equal(t, uint32(1000), Frequency())
}

func TestTickIncrementsAndInvokesCallback(t *testing.T) {
	withMockedHooks(t)
	Init(1000)

	var calls int
	SetOnTick(func() { calls++ })
	defer SetOnTick(nil)

	Tick()
	Tick()

	require.Equal(t, uint64(2), Ticks())
	require.Equal(t, 2, calls)
}

func TestSleepMsWaitsForDeadline(t *testing.T) {
	withMockedHooks(t)
	Init(1000)

	haltCalls := 0
	haltFn = func() {
		haltCalls++
		Tick()
	}

	SleepMs(5)

	require.GreaterOrEqual(t, Ticks(), uint64(5))
	require.Equal(t, int(Ticks()), haltCalls)
}

func TestMsToTicksRoundsUp(t *testing.T) {
	withMockedHooks(t)
	Init(1000)
	require.Equal(t, uint64(1), msToTicks(1))

	Init(100)
	require.Equal(t, uint64(1), msToTicks(1))
}
