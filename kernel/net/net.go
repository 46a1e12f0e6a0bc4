// Package net defines the single seam between the NIC driver and a
// protocol stack. The TCP/UDP/IP/ARP/DHCP logic lives outside this kernel
// as a byte-oriented consumer of the NIC driver: device/nic depends only
// on the Stack interface below, never on a concrete protocol
// implementation.
package net

// Stack is implemented by whatever consumes/produces raw Ethernet frames
// on top of a NIC driver. The core kernel never looks inside a frame; it
// only moves byte slices across this boundary.
type Stack interface {
	// DeliverFrame hands a received frame to the stack. Called from the
	// NIC's receive path (poll loop or IRQ handler); implementations must
	// not block.
	DeliverFrame(frame []byte)

	// NextFrame returns the next frame queued for transmission and true,
	// or (nil, false) if nothing is pending. Called from the NIC's
	// transmit path.
	NextFrame() ([]byte, bool)
}

// Loopback is a trivial Stack used by tests: every delivered frame is
// immediately queued back out as the next frame to send, so a NIC driver
// test can exercise the full DeliverFrame/NextFrame seam without a real
// protocol stack.
type Loopback struct {
	pending [][]byte
}

// DeliverFrame implements Stack.
func (l *Loopback) DeliverFrame(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.pending = append(l.pending, cp)
}

// NextFrame implements Stack.
func (l *Loopback) NextFrame() ([]byte, bool) {
	if len(l.pending) == 0 {
		return nil, false
	}
	frame := l.pending[0]
	l.pending = l.pending[1:]
	return frame, true
}
