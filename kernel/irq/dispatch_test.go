package irq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func resetHandlerTables(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		exceptionHandlers = [32]ExceptionHandler{}
		exceptionHandlersWithCode = [32]ExceptionHandlerWithCode{}
		irqHandlers = [16]IRQHandler{}
		pageFaultHandlerFn = nil
		haltFn = func() {}
		readCR2Fn = func() uintptr { return 0 }
	})
}

func TestCommonHandlerRoutesExceptionWithoutCode(t *testing.T) {
	resetHandlerTables(t)

	called := false
	HandleException(InvalidOpcode, func(frame *Frame, regs *Regs) { called = true })

	commonHandler(uint8(InvalidOpcode), 0, &Regs{}, &Frame{})
	require.True(t, called)
}

func TestCommonHandlerRoutesExceptionWithCode(t *testing.T) {
	resetHandlerTables(t)

	var gotCode uint64
	HandleExceptionWithCode(GPFException, func(code uint64, frame *Frame, regs *Regs) { gotCode = code })

	commonHandler(uint8(GPFException), 0xABCD, &Regs{}, &Frame{})
	require.Equal(t, uint64(0xABCD), gotCode)
}

func TestCommonHandlerPageFaultRescueSuppressesHalt(t *testing.T) {
	resetHandlerTables(t)

	halted := false
	SetHaltFn(func() { halted = true })
	SetReadCR2Fn(func() uintptr { return 0xE0001000 })
	SetPageFaultHandler(func(addr uintptr, code uint64) bool { return addr == 0xE0001000 })

	commonHandler(uint8(PageFaultException), 0, &Regs{}, &Frame{})
	require.False(t, halted)
}

func TestCommonHandlerUnhandledExceptionHalts(t *testing.T) {
	resetHandlerTables(t)

	halted := false
	SetHaltFn(func() { halted = true })

	commonHandler(3, 0, &Regs{}, &Frame{})
	require.True(t, halted)
}

func TestCommonHandlerDispatchesIRQAndSendsEOI(t *testing.T) {
	resetHandlerTables(t)
	writes := withMockedPorts(t)

	called := false
	HandleIRQ(0, func(frame *Frame, regs *Regs) { called = true })
	*writes = nil // HandleIRQ's unmask call also writes ports; reset before the assertion below

	commonHandler(32, 0, &Regs{}, &Frame{})

	require.True(t, called)
	require.Equal(t, []portWrite{{masterCommandPort, picEOI}}, *writes)
}

func TestCommonHandlerUnregisteredIRQStillSendsEOI(t *testing.T) {
	resetHandlerTables(t)
	writes := withMockedPorts(t)

	commonHandler(33, 0, &Regs{}, &Frame{})

	require.Equal(t, []portWrite{{masterCommandPort, picEOI}}, *writes)
}
