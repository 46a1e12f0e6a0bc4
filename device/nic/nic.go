// Package nic implements the DMA descriptor-ring driver for an E1000-class
// NIC. It is the one device that exercises the whole memory substrate at
// once: physical frame allocation for rings and buffers, HHDM virtual
// views of them, a BAR0 MMIO register window, ring cursor arithmetic, and
// at-most-one-in-flight-per-slot transmit semantics.
package nic

import (
	"novaos/device"
	"novaos/kernel"
	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
	"novaos/kernel/mem/vmm"
	"novaos/kernel/net"
	"novaos/kernel/pci"
	"novaos/kernel/pit"
)

// Intel vendor ID and the 82540EM ("e1000") device ID, the de facto
// QEMU default NIC this driver targets.
const (
	VendorIntel   = 0x8086
	DeviceE1000EM = 0x100E
)

// Register byte offsets within the BAR0 MMIO window.
const (
	regCTRL   = 0x00
	regSTATUS = 0x08
	regICR    = 0xC0
	regIMS    = 0xD0
	regIMC    = 0xD8
	regRCTL   = 0x100
	regTCTL   = 0x400
	regRDBAL  = 0x2800
	regRDBAH  = 0x2804
	regRDLEN  = 0x2808
	regRDH    = 0x2810
	regRDT    = 0x2818
	regTDBAL  = 0x3800
	regTDBAH  = 0x3804
	regTDLEN  = 0x3808
	regTDH    = 0x3810
	regTDT    = 0x3818
)

const (
	ctrlReset = 1 << 26

	rctlEN     = 1 << 1
	rctlUPE    = 1 << 3
	rctlMPE    = 1 << 4
	rctlBAM    = 1 << 15
	rctlSZ2048 = 0 // BSIZE=00b, BSEX=0 -> 2048 bytes
	rctlSECRC  = 1 << 26

	tctlEN          = 1 << 1
	tctlPSP         = 1 << 3
	tctlCTShift     = 4
	tctlCOLDShift   = 12
	tctlCTDefault   = 0x10
	tctlCOLDDefault = 0x40

	imAll = 0xFFFFFFFF
)

// descriptorSize is the fixed 16-byte size of both RX and TX descriptors.
const descriptorSize = 16

// ringLen is the descriptor count per ring. A single 4 KiB frame holds
// exactly 256 16-byte descriptors, so one physically contiguous PFA frame
// suffices for a whole ring.
const ringLen = int(mem.PageSize) / descriptorSize

// bufferSize is the fixed per-packet buffer size this driver uses; Send
// rejects anything larger.
const bufferSize = 2048

// statusDD is the Descriptor Done bit in both RX and TX descriptors, the only cross-owner
// signal between hardware and software for a ring slot.
const statusDD = 1 << 0

// rxDescriptor/txDescriptor mirror the hardware's 16-byte wire layout
// exactly. Send/Recv re-take the descriptor pointer from the ring slice on
// every call, so status bits hardware flips between polls are always read
// freshly; no descriptor pointer is held across a poll.
type rxDescriptor struct {
	addr    uint64
	length  uint16
	csum    uint16
	status  uint8
	errs    uint8
	special uint16
}

type txDescriptor struct {
	addr    uint64
	length  uint16
	cso     uint8
	cmd     uint8
	status  uint8
	css     uint8
	special uint16
}

// TX command bits: end-of-packet, insert FCS, report status via DD.
const (
	txCmdEOP  = 1 << 0
	txCmdIFCS = 1 << 1
	txCmdRS   = 1 << 3
)

var (
	// ErrRingFull is returned by Send when the descriptor at the current
	// cursor is still owned by hardware (DD clear).
	ErrRingFull = &kernel.Error{Module: "nic", Message: "transmit ring full"}

	// ErrFrameTooLarge is returned by Send for a frame exceeding
	// bufferSize.
	ErrFrameTooLarge = &kernel.Error{Module: "nic", Message: "frame exceeds maximum buffer size"}

	// ErrDeviceNotFound is returned by Probe when no matching PCI
	// function is present.
	ErrDeviceNotFound = &kernel.Error{Module: "nic", Message: "e1000-class device not found"}
)

// sleepMsFn is the tick-driven delay Reset uses to wait out CTRL.RST.
// Mocked by tests, which cannot afford a real 10ms busy-halt per reset.
var sleepMsFn = pit.SleepMs

// SetSleepFn overrides the delay primitive Reset uses.
func SetSleepFn(fn func(ms uint64)) {
	sleepMsFn = fn
}

// allocFrameFn/physToVirtFn back every ring/buffer allocation this driver
// does. Defaulting to pmm/vmm keeps production wiring a one-liner; tests
// override both with a backing []byte arena so InitRX/InitTX exercise the
// real descriptor/buffer layout without dereferencing fabricated physical
// addresses.
var (
	allocFrameFn = allocRingFrame
	physToVirtFn = vmm.PhysToVirt
)

// SetAllocators overrides the frame allocator and physical-to-virtual
// translator this driver uses. Exposed for tests.
func SetAllocators(alloc func() (pmm.Frame, *kernel.Error), physToVirt func(uintptr) uintptr) {
	allocFrameFn = alloc
	physToVirtFn = physToVirt
}

// Device is a single E1000-class NIC instance.
type Device struct {
	mmioBase uintptr

	rxRing []rxDescriptor
	txRing []txDescriptor
	rxBufs [][]byte
	txBufs [][]byte

	rxCursor int
	txCursor int

	// stack is the protocol stack this driver exchanges frames with. Nil
	// until SetStack is called, in which case Poll is a no-op: the driver
	// never requires a concrete protocol implementation.
	stack net.Stack
}

// DriverName implements device.Driver.
func (d *Device) DriverName() string { return "nic" }

// DriverVersion implements device.Driver.
func (d *Device) DriverVersion() (uint16, uint16, uint16) { return 1, 0, 0 }

// DriverInit implements device.Driver: it resets the device and brings up
// both descriptor rings. Probe has already located and MMIO-mapped the
// device by the time this runs.
func (d *Device) DriverInit() *kernel.Error {
	d.Reset()
	if err := d.InitRX(); err != nil {
		return err
	}
	if err := d.InitTX(); err != nil {
		return err
	}
	return nil
}

// SetStack registers the protocol stack this driver delivers received
// frames to and pulls queued transmit frames from. Production wires this
// to a real kernel/net.Stack implementation once one exists; tests use
// net.Loopback to exercise the seam without one.
func (d *Device) SetStack(s net.Stack) {
	d.stack = s
}

// Poll drains every frame currently sitting in the RX ring into the
// registered Stack, then sends every frame the Stack has queued for
// transmission, stopping early if the TX ring fills. A no-op until
// SetStack has been called.
func (d *Device) Poll() {
	if d.stack == nil {
		return
	}

	buf := make([]byte, bufferSize)
	for {
		n := d.Recv(buf)
		if n == 0 {
			break
		}
		d.stack.DeliverFrame(buf[:n])
	}

	for {
		frame, ok := d.stack.NextFrame()
		if !ok {
			break
		}
		if _, err := d.Send(frame); err != nil {
			break
		}
	}
}

// Probe locates an E1000-class function on the PCI bus, enables memory
// space and bus mastering, and maps its BAR0 register window through the
// VMM's MMIO allocator. It does not yet touch the device; call Reset, then
// InitRX/InitTX, before Send/Recv.
func Probe() (*Device, *kernel.Error) {
	dev, ok := pci.Find(VendorIntel, DeviceE1000EM)
	if !ok {
		return nil, ErrDeviceNotFound
	}
	pci.EnableMemoryAndBusMaster(dev)

	barPhys := uintptr(dev.BAR[0] &^ 0xF) // low 4 bits are BAR type/prefetch flags
	base, err := vmm.MapMMIO(barPhys, 128*mem.Kb)
	if err != nil {
		return nil, err
	}

	return &Device{mmioBase: base}, nil
}

func (d *Device) readReg(offset uintptr) uint32 {
	return *(*uint32)(volatilePtr(d.mmioBase + offset))
}

func (d *Device) writeReg(offset uintptr, value uint32) {
	*(*uint32)(volatilePtr(d.mmioBase + offset)) = value
}

// Reset writes CTRL.RST, waits at least 10ms via the tick source, masks
// every interrupt source, and reads ICR to clear any interrupt left
// pending.
func (d *Device) Reset() {
	ctrl := d.readReg(regCTRL)
	d.writeReg(regCTRL, ctrl|ctrlReset)
	sleepMsFn(10)
	d.writeReg(regIMC, imAll)
	d.readReg(regICR)
}

// allocRingFrame allocates a single physically contiguous, page-aligned
// PFA frame to back a descriptor ring.
func allocRingFrame() (pmm.Frame, *kernel.Error) {
	return pmm.AllocPage()
}

// InitRX allocates the RX descriptor ring and one buffer frame per
// descriptor, programs RDBAL/RDBAH/RDLEN/RDH/RDT, and enables reception.
func (d *Device) InitRX() *kernel.Error {
	ringFrame, err := allocFrameFn()
	if err != nil {
		return err
	}
	ringVirt := physToVirtFn(ringFrame.Address())
	d.rxRing = descSliceRX(ringVirt, ringLen)
	d.rxBufs = make([][]byte, ringLen)

	for i := 0; i < ringLen; i++ {
		bufFrame, err := allocFrameFn()
		if err != nil {
			return err
		}
		bufVirt := physToVirtFn(bufFrame.Address())
		d.rxBufs[i] = rawSlice(bufVirt, bufferSize)
		d.rxRing[i].addr = uint64(bufFrame.Address())
		d.rxRing[i].status = 0
	}

	d.writeReg(regRDBAL, uint32(ringFrame.Address()))
	d.writeReg(regRDBAH, uint32(ringFrame.Address()>>32))
	d.writeReg(regRDLEN, uint32(ringLen*descriptorSize))
	d.writeReg(regRDH, 0)
	d.writeReg(regRDT, uint32(ringLen-1))

	d.writeReg(regRCTL, rctlEN|rctlBAM|rctlSZ2048|rctlSECRC|rctlUPE|rctlMPE)

	d.rxCursor = 0
	return nil
}

// InitTX allocates the TX descriptor ring and one buffer frame per
// descriptor (every slot's status starts DD=1, i.e. free), programs
// TDBAL/TDBAH/TDLEN/TDH/TDT, and enables transmission.
func (d *Device) InitTX() *kernel.Error {
	ringFrame, err := allocFrameFn()
	if err != nil {
		return err
	}
	ringVirt := physToVirtFn(ringFrame.Address())
	d.txRing = descSliceTX(ringVirt, ringLen)
	d.txBufs = make([][]byte, ringLen)

	for i := 0; i < ringLen; i++ {
		bufFrame, err := allocFrameFn()
		if err != nil {
			return err
		}
		bufVirt := physToVirtFn(bufFrame.Address())
		d.txBufs[i] = rawSlice(bufVirt, bufferSize)
		d.txRing[i].addr = uint64(bufFrame.Address())
		d.txRing[i].status = statusDD
	}

	d.writeReg(regTDBAL, uint32(ringFrame.Address()))
	d.writeReg(regTDBAH, uint32(ringFrame.Address()>>32))
	d.writeReg(regTDLEN, uint32(ringLen*descriptorSize))
	d.writeReg(regTDH, 0)
	d.writeReg(regTDT, 0)

	d.writeReg(regTCTL, tctlEN|tctlPSP|(tctlCTDefault<<tctlCTShift)|(tctlCOLDDefault<<tctlCOLDShift))

	d.txCursor = 0
	return nil
}

// Send copies len(frame) bytes into the buffer at the current TX cursor
// and hands the descriptor to hardware. It fails with ErrRingFull unless
// the descriptor at the cursor is marked done (DD=1) by hardware, and with
// ErrFrameTooLarge if the frame exceeds bufferSize. The driver never
// touches the slot's buffer again until a later call observes DD=1 for
// that same slot.
func (d *Device) Send(frame []byte) (int, *kernel.Error) {
	if len(frame) > bufferSize {
		return 0, ErrFrameTooLarge
	}

	cur := d.txCursor
	desc := &d.txRing[cur]
	if desc.status&statusDD == 0 {
		return 0, ErrRingFull
	}

	copy(d.txBufs[cur], frame)
	desc.length = uint16(len(frame))
	desc.cmd = txCmdEOP | txCmdIFCS | txCmdRS
	desc.status = 0

	d.txCursor = (cur + 1) % ringLen
	d.writeReg(regTDT, uint32(d.txCursor))

	return len(frame), nil
}

// Recv copies the packet at the current RX cursor into buf (truncated to
// len(buf)) if hardware has produced one (DD=1), clears the descriptor,
// advances the cursor, and writes the old cursor back to RDT so hardware
// can reuse that slot. Returns 0 if nothing is pending.
func (d *Device) Recv(buf []byte) int {
	cur := d.rxCursor
	desc := &d.rxRing[cur]
	if desc.status&statusDD == 0 {
		return 0
	}

	n := int(desc.length)
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, d.rxBufs[cur][:n])

	desc.status = 0
	d.writeReg(regRDT, uint32(cur))
	d.rxCursor = (cur + 1) % ringLen

	return n
}

// probeForE1000 adapts Probe's (*Device, *kernel.Error) signature to
// device.DriverInfo.Probe's func() device.Driver, returning nil when no
// matching PCI function is present.
func probeForE1000() device.Driver {
	dev, err := Probe()
	if err != nil {
		return nil
	}
	return dev
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probeForE1000,
	})
}
